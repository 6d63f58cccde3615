package clickhouse

import "fmt"

// SalesSchema returns the DDL for the daily sales table. ReplacingMergeTree
// keyed on (product_id, day) keeps the latest row per day by ingested_at.
func SalesSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.sales_daily (
    product_id  String,
    day         Date,
    quantity    Float64,
    ingested_at DateTime64(3) DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (product_id, day)`, database),
	}
}
