package tracker

// SiteProfile is the externally-owned identity of one tracker
// installation. The scraping core only reads it; credentials are
// never persisted by anything in this module.
type SiteProfile struct {
	Name      string `json:"name"`
	Url       string `json:"url"`
	Cookie    string `json:"cookie"`
	UserAgent string `json:"user_agent"`
	// api-driven sites only
	ApiKey        string `json:"api_key,omitempty"`
	Authorization string `json:"authorization,omitempty"`
}

// InviteStatus summarizes whether the account can currently send an
// invite and why. CanInvite is never true without a Reason backing it
// up: either a positive quota count, an unambiguous submission form,
// or enough wallet balance to purchase capacity.
type InviteStatus struct {
	CanInvite            bool    `json:"can_invite"`
	Reason               string  `json:"reason"`
	PermanentCount       int     `json:"permanent_count"`
	TemporaryCount       int     `json:"temporary_count"`
	Bonus                float64 `json:"bonus"`
	PermanentInvitePrice float64 `json:"permanent_invite_price"`
	TemporaryInvitePrice float64 `json:"temporary_invite_price"`
}

type RatioHealth string

const (
	RatioExcellent RatioHealth = "excellent"
	RatioGood      RatioHealth = "good"
	RatioWarning   RatioHealth = "warning"
	RatioDanger    RatioHealth = "danger"
	RatioNeutral   RatioHealth = "neutral"
	RatioUnknown   RatioHealth = "unknown"
)

// InviteeRecord is one row of the invited-member roster. Raw cell
// text is kept alongside normalized byte counts so callers can render
// what the site rendered.
type InviteeRecord struct {
	Username        string      `json:"username"`
	ProfileUrl      string      `json:"profile_url,omitempty"`
	Email           string      `json:"email,omitempty"`
	Uploaded        string      `json:"uploaded,omitempty"`
	UploadedBytes   float64     `json:"uploaded_bytes"`
	Downloaded      string      `json:"downloaded,omitempty"`
	DownloadedBytes float64     `json:"downloaded_bytes"`
	Ratio           string      `json:"ratio,omitempty"`
	RatioValue      float64     `json:"ratio_value"`
	RatioHealth     RatioHealth `json:"ratio_health"`
	RatioLabel      string      `json:"ratio_label,omitempty"`
	Seeding         string      `json:"seeding,omitempty"`
	SeedingSize     string      `json:"seeding_size,omitempty"`
	SeedMagic       string      `json:"seed_magic,omitempty"`
	SeedBonus       string      `json:"seed_bonus,omitempty"`
	LastSeedReport  string      `json:"last_seed_report,omitempty"`
	Enabled         string      `json:"enabled,omitempty"`
	Status          string      `json:"status,omitempty"`
}

// FailureKind is the machine-readable classification of a failed
// site parse.
type FailureKind string

const (
	FailureSiteNotSelected      FailureKind = "site_not_selected"
	FailureSiteConfigIncomplete FailureKind = "site_config_incomplete"
	FailureAuthInvalid          FailureKind = "auth_invalid"
	FailureUserIdUnresolvable   FailureKind = "user_id_unresolvable"
	FailureNetworkError         FailureKind = "network_error"
	FailureBadPageStructure     FailureKind = "page_structure_unrecognized"
)

// ParseResult is the immutable snapshot produced by one fetch cycle.
// Partial data is still a valid result: quota without a roster, or a
// roster with unresolved columns, is returned rather than discarded.
type ParseResult struct {
	InviteStatus InviteStatus    `json:"invite_status"`
	Invitees     []InviteeRecord `json:"invitees"`
	Error        string          `json:"error,omitempty"`
	ErrorKind    FailureKind     `json:"error_kind,omitempty"`
}

// Failure builds the short-circuit result for an unparseable site:
// never an exception, always a structured record with the reason in
// both machine and human readable form.
func Failure(kind FailureKind, message string) ParseResult {
	return ParseResult{
		InviteStatus: InviteStatus{
			CanInvite: false,
			Reason:    message,
		},
		Error:     message,
		ErrorKind: kind,
	}
}
