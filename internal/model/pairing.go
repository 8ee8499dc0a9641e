package model

// PairingRequest 远端应用上等待批准的设备配对请求，仅在轮询期间存在
type PairingRequest struct {
	ID         string `json:"id"`
	DeviceID   string `json:"deviceId"`
	Origin     string `json:"origin"`
	AgeSeconds int    `json:"ageSeconds"`
}
