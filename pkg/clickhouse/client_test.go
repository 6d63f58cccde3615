package clickhouse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host: "ch", Port: 9000, Database: "marketpulse", User: "default", Password: "p@ss",
		DialTimeout: 5 * time.Second, AsyncInsert: true, WaitForAsync: true,
	})
	assert.True(t, strings.HasPrefix(dsn, "clickhouse://default:p%40ss@ch:9000/marketpulse?"), dsn)
	assert.Contains(t, dsn, "dial_timeout=5s")
	assert.Contains(t, dsn, "async_insert=1")
	assert.Contains(t, dsn, "wait_for_async_insert=1")

	httpDSN := BuildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "db", User: "u", UseHTTP: true})
	assert.True(t, strings.HasPrefix(httpDSN, "http://"), httpDSN)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}

func TestSalesSchema(t *testing.T) {
	stmts := SalesSchema("mp")
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "mp.sales_daily")
	assert.Contains(t, stmts[1], "ReplacingMergeTree")
}
