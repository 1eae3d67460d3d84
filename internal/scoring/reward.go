package scoring

// Credits奖励档位
const (
	RewardTopThreshold  = 90 // 90-100分
	RewardTopAmount     = 80
	RewardHighThreshold = 80 // 80-89分
	RewardHighAmount    = 30
)

// CalculateReward 根据最终评分计算Credits奖励
//
// 90分及以上80 Credits，80-89分30 Credits，80分以下无奖励。
func CalculateReward(score int) int {
	if score >= RewardTopThreshold {
		return RewardTopAmount
	}
	if score >= RewardHighThreshold {
		return RewardHighAmount
	}
	return 0
}
