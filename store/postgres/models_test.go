package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/quota/account"
	"github.com/xraph/quota/feature"
)

func TestAccountModelSlaves(t *testing.T) {
	a := &account.Account{ID: "m1", Email: "hr@acme.test", IsMaster: true}
	slaves := []slaveModel{{SlaveID: "s1", MasterID: "m1"}, {SlaveID: "s2", MasterID: "m1"}}

	got := fromAccountModel(toAccountModel(a), slaves)
	if !got.IsMaster || len(got.SlaveUsers) != 2 || got.SlaveUsers[0] != "s1" {
		t.Errorf("account = %+v", got)
	}
}

func TestDeltaMap(t *testing.T) {
	got := deltaMap(map[feature.Key]int64{feature.Views: 3, feature.Jobs: 1})
	if got[string(feature.Views)] != 3 || got[string(feature.Jobs)] != 1 || len(got) != 2 {
		t.Errorf("deltaMap = %v", got)
	}
}

func TestSQLState(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	if !isUniqueViolation(unique) || isForeignKeyViolation(unique) {
		t.Error("wrapped 23505 misclassified")
	}
	if !isForeignKeyViolation(fk) || isUniqueViolation(fk) {
		t.Error("23503 misclassified")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Error("plain error classified as unique violation")
	}
}
