package postgres

import (
	"strings"
	"testing"
)

func TestConnectionInfo_DSN(t *testing.T) {
	dsn := ConnectionInfo{
		Host:     "db.internal",
		Port:     5433,
		Username: "loan",
		DBName:   "loandb",
		SSLMode:  "require",
		Password: "secret",
	}.DSN()

	for _, part := range []string{"host=db.internal", "port=5433", "user=loan", "dbname=loandb", "sslmode=require", "password=secret"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("dsn %q missing %q", dsn, part)
		}
	}
}
