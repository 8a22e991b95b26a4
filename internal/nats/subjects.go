package nats

import "strings"

// Subject roots.
const (
	SubjectDevicesPrefix  = "snapcam.devices"
	SubjectControlCapture = "snapcam.control.capture"
)

var subjectToken = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

// DeviceSubject returns the subject for kind events of deviceID. An empty
// ID maps to "unknown".
func DeviceSubject(deviceID, kind string) string {
	token := subjectToken.Replace(deviceID)
	if token == "" {
		token = "unknown"
	}
	return SubjectDevicesPrefix + "." + token + "." + kind
}
