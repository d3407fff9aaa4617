package client

// Action is the batch job action.
type Action string

const (
	ActionCreate Action = "Create"
	ActionDelete Action = "Delete"
)

// WriteType controls how attributes, tags, and security labels are
// written to existing entities.
type WriteType string

const (
	WriteAppend  WriteType = "Append"
	WriteReplace WriteType = "Replace"
)

// Settings are the per-job batch settings submitted with the first
// chunk of a job.
type Settings struct {
	Owner                   string
	Action                  Action
	AttributeWriteType      WriteType
	TagWriteType            WriteType
	SecurityLabelWriteType  WriteType
	HaltOnError             bool
	HaltOnFileError         bool
	PlaybookTriggersEnabled *bool
	HashCollisionMode       string
	FileMergeMode           string
}

// DefaultSettings returns the default job settings for an owner.
func DefaultSettings(owner string) Settings {
	return Settings{
		Owner:                  owner,
		Action:                 ActionCreate,
		AttributeWriteType:     WriteReplace,
		TagWriteType:           WriteReplace,
		SecurityLabelWriteType: WriteReplace,
		HaltOnError:            true,
	}
}

// Wire returns the job settings payload. Boolean switches travel as
// the strings "true"/"false" per the wire contract.
func (s Settings) Wire() map[string]any {
	halt := "false"
	if s.HaltOnError {
		halt = "true"
	}
	m := map[string]any{
		"action":                 string(s.Action),
		"attributeWriteType":     string(s.AttributeWriteType),
		"tagWriteType":           string(s.TagWriteType),
		"securityLabelWriteType": string(s.SecurityLabelWriteType),
		"haltOnError":            halt,
		"owner":                  s.Owner,
		"version":                "V2",
	}
	if s.PlaybookTriggersEnabled != nil {
		m["playbookTriggersEnabled"] = *s.PlaybookTriggersEnabled
	}
	if s.HashCollisionMode != "" {
		m["hashCollisionMode"] = s.HashCollisionMode
	}
	if s.FileMergeMode != "" {
		m["fileMergeMode"] = s.FileMergeMode
	}
	return m
}
