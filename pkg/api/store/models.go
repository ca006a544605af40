package store

import (
	"time"
)

// Testcase is a named category of test a result reports against. Created
// on first reference and never deleted.
type Testcase struct {
	Name   string  `gorm:"primaryKey" json:"name"`
	RefURL *string `json:"ref_url"`
}

// Group is an arbitrary collection tag (e.g. a CI run) a result can belong
// to. Groups are created lazily when a result references an unknown uuid.
type Group struct {
	UUID        string  `gorm:"primaryKey;column:uuid" json:"uuid"`
	Description *string `json:"description"`
	RefURL      *string `json:"ref_url"`
}

// Result is one reported test outcome. A result owns its data rows and
// references (never owns) its testcase and groups.
type Result struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	TestcaseName string       `gorm:"index;not null" json:"-"`
	Testcase     Testcase     `gorm:"foreignKey:TestcaseName;references:Name" json:"testcase"`
	Outcome      string       `gorm:"not null;index" json:"outcome"`
	SubmitTime   time.Time    `gorm:"index" json:"submit_time"`
	Note         *string      `json:"note"`
	RefURL       *string      `json:"ref_url"`
	Groups       []Group      `gorm:"many2many:results_groups;joinForeignKey:ResultID;joinReferences:GroupUUID" json:"groups"`
	Data         []ResultData `gorm:"foreignKey:ResultID;constraint:OnDelete:CASCADE" json:"data"`
}

// ResultData is a single key/value attribute attached to a result. Keys
// may repeat on the same result (multi-valued attribute) and must not
// contain a colon.
type ResultData struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	ResultID uint   `gorm:"index;not null" json:"-"`
	Key      string `gorm:"column:key;index;not null" json:"key"`
	Value    string `gorm:"column:value" json:"value"`
}

// DataValues collapses the data rows into a key -> values map.
func (r *Result) DataValues() map[string][]string {
	values := make(map[string][]string, len(r.Data))
	for _, d := range r.Data {
		values[d.Key] = append(values[d.Key], d.Value)
	}

	return values
}

// GroupUUIDs returns the uuids of the groups the result belongs to.
func (r *Result) GroupUUIDs() []string {
	uuids := make([]string, 0, len(r.Groups))
	for _, g := range r.Groups {
		uuids = append(uuids, g.UUID)
	}

	return uuids
}
