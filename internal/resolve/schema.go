package resolve

import "github.com/roach88/pinbase/internal/ir"

// FieldType is the coercion applied to a winning claim value.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
	TypeBool    FieldType = "bool"
	TypeDate    FieldType = "date" // YYYY, YYYY-MM or YYYY-MM-DD
	TypeOrg     FieldType = "org"  // organization reference, resolved to a brand ID
)

// Schema declares the modeled columns of one entity kind.
type Schema map[string]FieldType

// DefaultSchemas returns the column declarations for every entity kind.
func DefaultSchemas() map[ir.EntityKind]Schema {
	return map[ir.EntityKind]Schema{
		ir.KindTitle: {
			"name":          TypeString,
			"description":   TypeString,
			"abbreviation":  TypeString,
			"opdb_group_id": TypeString,
		},
		ir.KindProduction: {
			"name":         TypeString,
			"description":  TypeString,
			"manufacturer": TypeOrg,
			"year":         TypeInt,
			"month":        TypeInt,
			"machine_type": TypeString,
			"display_type": TypeString,
			"player_count": TypeInt,
		},
		ir.KindTier: {
			"name":         TypeString,
			"description":  TypeString,
			"display_type": TypeString,
			"player_count": TypeInt,
			"mpu":          TypeString,
			"label_only":   TypeBool,
		},
		ir.KindModel: {
			"name":                TypeString,
			"description":         TypeString,
			"manufacturer":        TypeOrg,
			"year":                TypeInt,
			"month":               TypeInt,
			"release_date":        TypeDate,
			"machine_type":        TypeString,
			"display_type":        TypeString,
			"player_count":        TypeInt,
			"production_quantity": TypeInt,
			"theme":               TypeString,
			"mpu":                 TypeString,
			"opdb_id":             TypeString,
			"ipdb_id":             TypeInt,
			"ipdb_rating":         TypeDecimal,
		},
		ir.KindManufacturer: {
			"name":                 TypeString,
			"trade_name":           TypeString,
			"description":          TypeString,
			"website":              TypeString,
			"opdb_manufacturer_id": TypeInt,
		},
		ir.KindCorporateEntity: {
			"name":                 TypeString,
			"years_active":         TypeString,
			"ipdb_manufacturer_id": TypeInt,
			"city":                 TypeString,
			"state":                TypeString,
			"country":              TypeString,
		},
		ir.KindPerson: {
			"name":        TypeString,
			"description": TypeString,
		},
	}
}
