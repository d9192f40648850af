package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OpenMemory 打开独立的内存 sqlite 库，每次调用互不共享
func OpenMemory() (*gorm.DB, error) {
	return Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())))
}
