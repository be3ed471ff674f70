package ir

import "time"

// EntityKind names a level of the catalog.
type EntityKind string

const (
	KindTitle           EntityKind = "title"
	KindProduction      EntityKind = "production"
	KindTier            EntityKind = "tier"
	KindModel           EntityKind = "model"
	KindManufacturer    EntityKind = "manufacturer"
	KindCorporateEntity EntityKind = "corporate_entity"
	KindPerson          EntityKind = "person"
)

// ValidKinds defines the entity kinds the ledger accepts.
var ValidKinds = map[EntityKind]bool{
	KindTitle:           true,
	KindProduction:      true,
	KindTier:            true,
	KindModel:           true,
	KindManufacturer:    true,
	KindCorporateEntity: true,
	KindPerson:          true,
}

// SourceCategory classifies a data origin.
type SourceCategory string

const (
	CategoryDatabase  SourceCategory = "database"
	CategoryBook      SourceCategory = "book"
	CategoryEditorial SourceCategory = "editorial"
	CategoryOverride  SourceCategory = "override"
)

// OrgScheme says how a source refers to organizations in its claims.
type OrgScheme string

const (
	// OrgSchemeIncarnation: values are corporate-incarnation external IDs.
	OrgSchemeIncarnation OrgScheme = "incarnation"
	// OrgSchemeBrand: values are the source's own brand IDs.
	OrgSchemeBrand OrgScheme = "brand"
	// OrgSchemeName: values are free-text names.
	OrgSchemeName OrgScheme = ""
)

// Source is a trust-ranked origin of facts.
type Source struct {
	ID          string         `json:"id"` // Stable slug, e.g. "ipdb"
	Name        string         `json:"name"`
	Category    SourceCategory `json:"category"`
	Priority    int            `json:"priority"` // Higher wins
	URL         string         `json:"url,omitempty"`
	Description string         `json:"description,omitempty"`
	OrgScheme   OrgScheme      `json:"org_scheme,omitempty"`
}

// Claim is one asserted fact about one entity.
type Claim struct {
	ID        int64     `json:"id"`
	Entity    EntityRef `json:"entity"`
	SourceID  string    `json:"source_id"`
	Field     string    `json:"field"`
	ClaimKey  string    `json:"claim_key"` // == Field for scalar claims
	Value     IRValue   `json:"value"`
	Citation  string    `json:"citation,omitempty"`
	Active    bool      `json:"active"`
	Seq       int64     `json:"seq"` // Logical clock; larger is more recent
	CreatedAt time.Time `json:"created_at"`
}

// RankedClaim is an active claim joined with its source's trust data.
type RankedClaim struct {
	Claim
	Priority  int       `json:"priority"`
	OrgScheme OrgScheme `json:"org_scheme,omitempty"`
}

// PendingClaim is an unsaved claim handed to the ledger's bulk write path.
type PendingClaim struct {
	Entity   EntityRef
	Field    string
	ClaimKey string // Empty means Field
	Value    IRValue
	Citation string
}

// Key returns the effective claim key.
func (p PendingClaim) Key() string {
	if p.ClaimKey == "" {
		return p.Field
	}
	return p.ClaimKey
}

// GroupKey is the structural grouping a production was derived under.
// Tiers carry the key of the production they were derived into so the
// contract validator can detect mismatched parents.
type GroupKey struct {
	Group      string `json:"group"`
	Brand      string `json:"brand,omitempty"`
	Generation string `json:"generation,omitempty"`
	Pinned     string `json:"pinned,omitempty"` // Curated production name, if pinned
}

// Entity is the structural record of a catalog entity: identity, parent,
// and derivation metadata. Descriptive facts live in claims.
type Entity struct {
	Ref       EntityRef  `json:"ref"`
	Parent    *EntityRef `json:"parent,omitempty"`
	Group     GroupKey   `json:"group"`
	Ordinal   int        `json:"ordinal"`
	IsDefault bool       `json:"is_default,omitempty"`
}

// Credit links a person to a model with a role.
type Credit struct {
	Person string `json:"person"`
	Role   string `json:"role"`
}

// ResolvedEntity is the materialized catalog row for one entity.
// Fields holds coerced values for declared columns; Extra holds everything
// else verbatim.
type ResolvedEntity struct {
	Ref       EntityRef  `json:"ref"`
	Parent    *EntityRef `json:"parent,omitempty"`
	Group     GroupKey   `json:"group"`
	IsDefault bool       `json:"is_default,omitempty"`
	Fields    IRObject   `json:"fields"`
	Extra     IRObject   `json:"extra"`
	Credits   []Credit   `json:"credits,omitempty"`
}

// MachineRow is one parsed record from the hierarchical group/machine/alias
// source.
type MachineRow struct {
	ID              string            `json:"id" yaml:"id"`
	GroupID         string            `json:"group_id" yaml:"group_id"`
	GroupName       string            `json:"group_name,omitempty" yaml:"group_name,omitempty"`
	IsAlias         bool              `json:"is_alias" yaml:"is_alias"`
	AliasOf         string            `json:"alias_of,omitempty" yaml:"alias_of,omitempty"`
	DefinesHardware bool              `json:"defines_hardware" yaml:"defines_hardware"`
	ManufacturerID  int64             `json:"manufacturer_id,omitempty" yaml:"manufacturer_id,omitempty"`
	Manufacturer    string            `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Name            string            `json:"name" yaml:"name"`
	Type            string            `json:"type,omitempty" yaml:"type,omitempty"`       // "em", "ss", "me"
	Display         string            `json:"display,omitempty" yaml:"display,omitempty"` // "dmd", "reels", ...
	Date            string            `json:"date,omitempty" yaml:"date,omitempty"`       // "1992-03-01"
	PlayerCount     int64             `json:"player_count,omitempty" yaml:"player_count,omitempty"`
	IPDBID          int64             `json:"ipdb_id,omitempty" yaml:"ipdb_id,omitempty"`
	Extra           map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// FlatRecord is one parsed record from the flat per-title export.
type FlatRecord struct {
	ID               int64             `json:"id" yaml:"id"`
	Title            string            `json:"title" yaml:"title"`
	Manufacturer     string            `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	ManufacturerID   int64             `json:"manufacturer_id,omitempty" yaml:"manufacturer_id,omitempty"`
	Date             string            `json:"date,omitempty" yaml:"date,omitempty"` // "1992-03-01T00:00:00"
	TypeShort        string            `json:"type_short,omitempty" yaml:"type_short,omitempty"`
	Type             string            `json:"type,omitempty" yaml:"type,omitempty"`
	Players          int64             `json:"players,omitempty" yaml:"players,omitempty"`
	ProductionNumber string            `json:"production_number,omitempty" yaml:"production_number,omitempty"`
	Rating           string            `json:"rating,omitempty" yaml:"rating,omitempty"`
	Credits          map[string]string `json:"credits,omitempty" yaml:"credits,omitempty"` // role -> "A, B"
	ImageURLs        []string          `json:"image_urls,omitempty" yaml:"image_urls,omitempty"`
}
