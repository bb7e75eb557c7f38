package nssmf

// SubscriptionRequest is the FileDataReportingMnS subscription body.
type SubscriptionRequest struct {
	ConsumerReference string `json:"consumerReference"`
}

// DateTime wraps an ISO-8601 timestamp string.
type DateTime struct {
	DateTime string `json:"dateTime"`
}

// NotificationHeader identifies a notification.
type NotificationHeader struct {
	NotificationID   string   `json:"notificationId"`
	NotificationType string   `json:"notificationType"`
	EventTime        DateTime `json:"eventTime"`
}

// FileInfo describes one reported file.
type FileInfo struct {
	FileLocation       string   `json:"fileLocation"`
	FileSize           int      `json:"fileSize"`
	FileReadyTime      DateTime `json:"fileReadyTime"`
	FileExpirationTime DateTime `json:"fileExpirationTime"`
	FileCompression    string   `json:"fileCompression"`
	FileFormat         string   `json:"fileFormat"`
	FileDataType       string   `json:"fileDataType"`
	JobID              string   `json:"jobId"`
}

// FileReadyNotification is the notifyFileReady payload posted to subscribers.
type FileReadyNotification struct {
	NotificationHeader NotificationHeader `json:"notificationHeader"`
	FileInfoList       []FileInfo         `json:"fileInfoList"`
	AdditionalText     string             `json:"additionalText"`
}

// NotifyFileReady is the notificationType of file-ready notifications.
const NotifyFileReady = "notifyFileReady"
