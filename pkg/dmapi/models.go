package dmapi

import "time"

// Typed views of common payloads, for use with Response.Decode. Fields the
// Data Manager adds later are ignored.

// Version is the payload of GetVersion.
type Version struct {
	Version string `json:"version"`
}

// Project describes a Data Manager project.
type Project struct {
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	ProductID string    `json:"product_id"`
	Owner     string    `json:"owner"`
	Size      int64     `json:"size"`
	Created   time.Time `json:"created"`
}

// ProjectList is the payload of GetAvailableProjects.
type ProjectList struct {
	Projects []Project `json:"projects"`
}

// ProjectFile describes a file listed on a project path.
type ProjectFile struct {
	FileID    string `json:"file_id"`
	FileName  string `json:"file_name"`
	Owner     string `json:"owner"`
	Mime      string `json:"mime_type"`
	Size      string `json:"size"`
	Immutable bool   `json:"immutable"`
}

// ProjectFileList is the payload of ListProjectFiles.
type ProjectFileList struct {
	ProjectID string        `json:"project_id"`
	Path      string        `json:"path"`
	Files     []ProjectFile `json:"files"`
}

// Instance phases reported by the Data Manager.
const (
	PhaseCompleted = "COMPLETED"
	PhaseFailed    = "FAILED"
	PhaseRunning   = "RUNNING"
)

// Instance describes a running Application or Job.
type Instance struct {
	InstanceID string    `json:"instance_id"`
	TaskID     string    `json:"task_id"`
	ProjectID  string    `json:"project_id"`
	Name       string    `json:"name"`
	Phase      string    `json:"phase"`
	Launched   time.Time `json:"launched"`
}

// StartedInstance is the payload of StartJobInstance.
type StartedInstance struct {
	InstanceID    string `json:"instance_id"`
	TaskID        string `json:"task_id"`
	CallbackToken string `json:"callback_token"`
}

// TaskEvent is one entry of a Task's event log.
type TaskEvent struct {
	Ordinal int       `json:"ordinal"`
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Task tracks the lifecycle of an Instance.
type Task struct {
	Purpose  string      `json:"purpose"`
	Done     bool        `json:"done"`
	ExitCode int         `json:"exit_code"`
	Events   []TaskEvent `json:"events"`
}

// JobSpecification identifies a Job and its variables. It is sent to the
// Data Manager as JSON without further checks.
type JobSpecification struct {
	Collection string         `json:"collection"`
	Job        string         `json:"job"`
	Version    string         `json:"version"`
	Variables  map[string]any `json:"variables,omitempty"`
}

// Job is the payload of GetJob and GetJobByName.
type Job struct {
	ID          int    `json:"id"`
	Collection  string `json:"collection"`
	Job         string `json:"job"`
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
