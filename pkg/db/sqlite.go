package db

import (
	"errors"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Extended sqlite result codes for constraint violations.
const (
	sqliteConstraintForeignKey = 787
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// sqliteDialector adds gorm error translation to the pure-Go sqlite
// driver, which reports constraint failures only as coded driver errors.
type sqliteDialector struct {
	*sqlite.Dialector
}

// SQLite opens dsn with the pure-Go driver. With TranslateError set,
// unique and primary key violations surface as gorm.ErrDuplicatedKey.
func SQLite(dsn string) gorm.Dialector {
	return sqliteDialector{Dialector: &sqlite.Dialector{DSN: dsn}}
}

func (d sqliteDialector) Translate(err error) error {
	var coded interface{ Code() int }
	if !errors.As(err, &coded) {
		return err
	}
	switch coded.Code() {
	case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
		return gorm.ErrDuplicatedKey
	case sqliteConstraintForeignKey:
		return gorm.ErrForeignKeyViolated
	}
	return err
}
