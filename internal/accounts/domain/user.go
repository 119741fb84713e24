package domain

import "time"

type User struct {
	ID             string
	Email          string // lower-cased, unique
	HashedPassword string // argon2id PHC string
	FirstName      string
	LastName       string

	IsActive    bool
	IsSuperuser bool
	IsVerified  bool

	// ProfilePicturePath is the file name returned by the file manager,
	// empty until the first upload.
	ProfilePicturePath string

	OTPEnabled   bool
	OTPVerified  bool
	OTPBase32    string // sealed at rest
	OTPAuthURL   string // sealed at rest
	OTPEnabledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserCreate is a registration candidate. The password is plaintext and
// never leaves the service layer.
type UserCreate struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	IsActive    bool
	IsSuperuser bool
	IsVerified  bool
}

// UserPatch is a partial update. Nil fields are left unchanged.
type UserPatch struct {
	HashedPassword     *string
	IsActive           *bool
	IsSuperuser        *bool
	IsVerified         *bool
	ProfilePicturePath *string

	OTPEnabled   *bool
	OTPVerified  *bool
	OTPBase32    *string
	OTPAuthURL   *string
	OTPEnabledAt *time.Time

	// ClearOTPEnabledAt nulls otp_enabled_at; it wins over OTPEnabledAt.
	ClearOTPEnabledAt bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p == UserPatch{}
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }
