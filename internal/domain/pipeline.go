package domain

// IngestRequest is a decoded upload request.
type IngestRequest struct {
	Bucket   string
	FileName string
	Content  []byte
}

// StoredFileRef locates a persisted object. The JSON names match the queue
// message body consumed by the dispatcher.
type StoredFileRef struct {
	Bucket string `json:"bucket_name"`
	Key    string `json:"file_name"`
}

// DispatchMessage is the queue payload linking a stored file to its
// downstream task. GroupID and DeduplicationID mirror the SQS FIFO
// attributes of the same send.
type DispatchMessage struct {
	GroupID         string `json:"MessageGroupId"`
	DeduplicationID string `json:"MessageDeduplicationId"`
	StoredFileRef
}

// DispatchedTask describes a single task launch request and its outcome.
type DispatchedTask struct {
	Cluster        string
	TaskDefinition string
	Container      string
	LaunchType     string
	Command        []string
	// TaskARN is empty when the control plane returned no task.
	TaskARN string
}
