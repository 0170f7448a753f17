package portal

import "strings"

const (
	// LoginEndpoint is the login form page; sessionstate=disabled matches
	// what the browser sends on a fresh visit
	LoginEndpoint = "/login.aspx?sessionstate=disabled"

	// StaffWarmupEndpoint is the human-navigable records page visited before
	// the staff API call to mint fresh session tokens
	StaffWarmupEndpoint = "/Records/UserNew.aspx"

	// StaffListEndpoint is the staff directory API
	StaffListEndpoint = "/Services/ChronicleV2.svc/GetStaff"

	// StudentWarmupEndpoint is the form-group page visited before the
	// student API call
	StudentWarmupEndpoint = "/Records/FormGroup.aspx?id=07A"

	// StudentListEndpoint is the student directory API
	StudentListEndpoint = "/Services/User.svc/GetAllStudentsBasic?sessionstate=readonly"

	// PhotoEndpoint is the prefix for authenticated photo downloads; the
	// photo version token completes the URL
	PhotoEndpoint = "/download/secure/cdn/full/"
)

// NormalizeBaseURL strips a trailing slash so joined URLs never contain "//"
func NormalizeBaseURL(base string) string {
	return strings.TrimRight(base, "/")
}

// LoginURL constructs the login page URL
func LoginURL(base string) string {
	return NormalizeBaseURL(base) + LoginEndpoint
}

// StaffWarmupURL constructs the staff warm-up page URL
func StaffWarmupURL(base string) string {
	return NormalizeBaseURL(base) + StaffWarmupEndpoint
}

// StaffListURL constructs the staff directory API URL
func StaffListURL(base string) string {
	return NormalizeBaseURL(base) + StaffListEndpoint
}

// StudentWarmupURL constructs the student warm-up page URL
func StudentWarmupURL(base string) string {
	return NormalizeBaseURL(base) + StudentWarmupEndpoint
}

// StudentListURL constructs the student directory API URL
func StudentListURL(base string) string {
	return NormalizeBaseURL(base) + StudentListEndpoint
}

// PhotoURL constructs the download URL for a photo version token
func PhotoURL(base, photoToken string) string {
	return NormalizeBaseURL(base) + PhotoEndpoint + photoToken
}
