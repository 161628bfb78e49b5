package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Product represents a product in the catalogue.
// BrandID is checked against the brand table by the service layer only; the
// column carries no foreign key so a deleted brand leaves the reference dangling.
type Product struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name              string     `json:"name" gorm:"type:varchar(100);not null;index"`
	BrandID           string     `json:"brandId" gorm:"type:varchar(36);index"`
	Brand             *Brand     `json:"brand" gorm:"-"`
	Type              string     `json:"type" gorm:"type:varchar(50)"`
	Description       string     `json:"description" gorm:"type:text"`
	Tags              StringList `json:"tags"`
	ActiveIngredients StringList `json:"activeIngredients"`
	Formula           string     `json:"formula" gorm:"type:text"`
	PhotoURL          string     `json:"photoUrl" gorm:"type:varchar(500)"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Query string // substring of name, type or brand name
	Type  string // exact type, case-insensitive
	Limit int    // 0 means unlimited
}

// StringList stores a list of strings as a JSON text column.
type StringList []string

// GormDataType tells gorm which column type to migrate.
func (StringList) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}
