package domain

// CommandType names the background work requested for a summary log.
type CommandType string

const (
	CommandValidate CommandType = "validate"
	CommandSubmit   CommandType = "submit"
)

// Command is the queue message body.
type Command struct {
	Type         CommandType `json:"command"`
	SummaryLogID string      `json:"summaryLogId"`
}
