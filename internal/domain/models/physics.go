package models

type MomentumStatus string

const (
	MomentumTrendingUp MomentumStatus = "TRENDING_UP"
	MomentumGrowing    MomentumStatus = "GROWING"
	MomentumStable     MomentumStatus = "STABLE"
	MomentumFalling    MomentumStatus = "FALLING"
	MomentumDeclining  MomentumStatus = "DECLINING"
)

// Momentum holds per-horizon EMA change ratios and their weighted blend.
type Momentum struct {
	Short    float64        `json:"momentum_7"`
	Medium   float64        `json:"momentum_14"`
	Long     float64        `json:"momentum_30"`
	Combined float64        `json:"combined"`
	Status   MomentumStatus `json:"status"`
}

type BurstLevel string

const (
	BurstNormal      BurstLevel = "NORMAL"
	BurstMild        BurstLevel = "MILD"
	BurstSignificant BurstLevel = "SIGNIFICANT"
	BurstCritical    BurstLevel = "CRITICAL"
)

type BurstType string

const (
	BurstTypeNone       BurstType = ""
	BurstTypeSeasonal   BurstType = "SEASONAL"
	BurstTypeViral      BurstType = "VIRAL"
	BurstTypeMonitoring BurstType = "MONITORING"
)

// BurstFactors are the multiplicative components of the expected demand on the last day.
type BurstFactors struct {
	Baseline  float64 `json:"baseline"`
	DayOfWeek float64 `json:"dow"`
	Payday    float64 `json:"payday"`
	Special   float64 `json:"special"`
}

// Burst describes how far the last observation deviates from expected demand.
type Burst struct {
	Actual   float64      `json:"actual"`
	Expected float64      `json:"expected"`
	Score    float64      `json:"score"`
	Level    BurstLevel   `json:"level"`
	Type     BurstType    `json:"type,omitempty"`
	Factors  BurstFactors `json:"factors"`
}

// PhysicsMetrics bundles the diagnostic signals derived at training time.
type PhysicsMetrics struct {
	Momentum      Momentum `json:"momentum"`
	Burst         Burst    `json:"burst"`
	PriorityScore float64  `json:"priority_score"`
}
