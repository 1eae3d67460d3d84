package services

import "fmt"

// 错误类型常量
const (
	ErrTypeValidation = "validation_error"
	ErrTypeDatabase   = "database_error"
	ErrTypeStorage    = "storage_error"
	ErrTypePipeline   = "pipeline_error"
	ErrTypeExternal   = "external_error"
	ErrTypeNotFound   = "not_found_error"
	ErrTypeResource   = "resource_error"
)

// 错误代码常量
const (
	ErrCodeInvalidInput      = "invalid_input"
	ErrCodeResourceNotFound  = "resource_not_found"
	ErrCodeResourceExists    = "resource_already_exists"
	ErrCodeDBConnection      = "database_connection_failed"
	ErrCodeDownloadFailed    = "download_failed"
	ErrCodeDurationExceeded  = "duration_exceeded"
	ErrCodeExtractionFailed  = "extraction_failed"
	ErrCodeUploadFailed      = "upload_failed"
	ErrCodeScorerUnavailable = "scorer_unavailable"
	ErrCodeTimeoutExceeded   = "timeout_exceeded"
	ErrCodeJobConflict       = "job_already_running"
	ErrCodeLedgerFailed      = "credit_ledger_failed"
)

// ServiceError 服务错误结构
type ServiceError struct {
	Type    string // 错误类型
	Code    string // 错误代码
	Message string // 错误消息
	Err     error  // 原始错误
}

// Error 实现error接口
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %s", e.Type, e.Code, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s - %s", e.Type, e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is 用于错误比较
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}
