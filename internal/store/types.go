package store

// Log levels written to the logs table.
const (
	LevelInfo = "info"
	LevelWarn = "warn"
)

// Actions recorded for mutating requests.
const (
	ActionUpdatePaper       = "update_paper"
	ActionGenerateStructure = "generate_structure"
	ActionUploadCorePic     = "upload_core_pic"
	ActionDeleteCorePic     = "delete_core_pic"
)

// Log is one row of the audit trail.
type Log struct {
	ID        int64  `json:"id"`
	Level     string `json:"level"`
	Action    string `json:"action"`
	PaperID   string `json:"paper_id,omitempty"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}
