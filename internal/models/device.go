package models

// DeviceRegistration records the device an account was created from; one
// row per account, used to cap registrations per IP address.
type DeviceRegistration struct {
	Base
	Fingerprint string `gorm:"index;not null"`
	IPAddress   string `gorm:"index;not null"`
	UserID      uint   `gorm:"index;not null"`
}
