package features

const (
	DayOfWeek      = "day_of_week"
	DayOfMonth     = "day_of_month"
	WeekOfYear     = "week_of_year"
	Month          = "month"
	IsWeekend      = "is_weekend"
	IsPaydayPeriod = "is_payday_period"
	WeekOfMonth    = "week_of_month"

	Lag1  = "lag_1"
	Lag2  = "lag_2"
	Lag3  = "lag_3"
	Lag7  = "lag_7"
	Lag14 = "lag_14"

	RollMean3  = "roll_mean_3"
	RollMean7  = "roll_mean_7"
	RollMean14 = "roll_mean_14"
	RollStd3   = "roll_std_3"
	RollStd7   = "roll_std_7"
	RollStd14  = "roll_std_14"
	RollMin7   = "roll_min_7"
	RollMax7   = "roll_max_7"

	DowAvg = "dow_avg"

	Roc1  = "roc_1"
	Roc7  = "roc_7"
	Diff1 = "diff_1"
	Diff7 = "diff_7"
	Ema7  = "ema_7"
	Ema14 = "ema_14"

	DowSin   = "dow_sin"
	DowCos   = "dow_cos"
	MonthSin = "month_sin"
	MonthCos = "month_cos"

	RelToRoll7 = "rel_to_roll7"
	RelToDow   = "rel_to_dow"
)

var (
	coreColumns = []string{
		DayOfWeek, DayOfMonth, IsWeekend, IsPaydayPeriod,
		Lag1, Lag2, Lag3, Lag7,
		RollMean3, RollMean7, DowAvg,
	}
	extendedColumns = []string{
		Lag14, RollMean14, RollStd7, WeekOfMonth, Roc1, Diff1,
	}
	advancedColumns = []string{
		RollStd3, RollStd14, RollMin7, RollMax7, Roc7, Diff7,
		Ema7, Ema14, DowSin, DowCos, WeekOfYear,
	}
	fullColumns = []string{
		MonthSin, MonthCos, RelToRoll7, RelToDow, Month,
	}
)

// SeedColumns are always carried in the persisted last row, regardless of tier,
// because the autoregressive walk and the rule estimate read them.
var SeedColumns = []string{RollMean7, RollMean3, Lag1, Lag7, DowAvg, Ema7}

// AllColumns lists every column the builder produces, in tier order.
func AllColumns() []string {
	return ColumnsFor(1 << 30)
}

// ColumnsFor selects the feature subset for a history of n rows. Fewer rows
// get fewer, more stable features.
func ColumnsFor(n int) []string {
	cols := append([]string(nil), coreColumns...)
	if n < 40 {
		return cols
	}
	cols = append(cols, extendedColumns...)
	if n < 80 {
		return cols
	}
	cols = append(cols, advancedColumns...)
	if n < 150 {
		return cols
	}
	return append(cols, fullColumns...)
}
