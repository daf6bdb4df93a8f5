package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var ErrDuplicateEmail = errors.New("email already registered")

const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
