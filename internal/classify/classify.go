// Package classify maps raw permission records to sharing types, audience
// types, and risk levels. All functions are pure and deterministic — both
// the full-crawl and delta paths funnel through this package so an
// identical permission always classifies identically.
package classify

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/sharegraph-go/internal/msgraph"
)

// Sharing types.
const (
	LinkAnyone         = "Link-Anyone"
	LinkOrganization   = "Link-Organization"
	LinkSpecificPeople = "Link-SpecificPeople"
	GroupShare         = "Group"
	UserShare          = "User"
	UnknownShare       = "Unknown"
)

// Audience types.
const (
	AudienceAnonymous = "Anonymous"
	AudienceInternal  = "Internal"
	AudienceExternal  = "External"
	AudienceGuest     = "Guest"
	AudienceUnknown   = "Unknown"
)

// Risk levels.
const (
	RiskHigh   = "HIGH"
	RiskMedium = "MEDIUM"
	RiskLow    = "LOW"
)

// Pseudo-principal emails for link-based audiences. These become User
// nodes in the graph so link shares join the same model as direct grants.
const (
	AnonymousPrincipal    = "anonymous"
	OrganizationPrincipal = "organization"
)

// guestMarker appears in the UPN-mangled email addresses of Entra B2B
// guest accounts.
const guestMarker = "#EXT#"

// sensitiveKeywords matches Danish business terms that indicate sensitive
// content: payroll, management, HR, finance, contracts, health and GDPR
// related material. Matched case-insensitively against full item paths.
var sensitiveKeywords = regexp.MustCompile(`(?i)(l[øo]n|ledelse|direktion|bestyrelse|datarum|personale|ans[æa]tt|opsigelse|fratr[æa]d|regnskab|budget|[øo]konomi|faktura|kontrakt|fortrolig|hemmelig|persondata|cpr|personfølsom|sundhed|syge|gdpr|pension|ferie|revision|inkasso|gæld|erstatning|disciplin[æa]r|advarsel|klage)`)

// teamsChatFolder matches the OneDrive folder that holds files shared in
// Teams chats (Danish and English folder names).
var teamsChatFolder = regexp.MustCompile(`(?i)Microsoft Teams[ -]chatfiler|Microsoft Teams Chat Files`)

// sensitiveExtensions are file types that tend to carry structured or
// sensitive data.
var sensitiveExtensions = map[string]bool{
	".xlsx": true, ".xls": true, ".csv": true, ".pdf": true,
	".docx": true, ".doc": true, ".pptx": true, ".ppt": true,
	".accdb": true, ".mdb": true,
}

// lowRiskExtensions are media types that rarely carry sensitive data.
var lowRiskExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".svg": true, ".ico": true,
	".mp4": true, ".mov": true, ".avi": true, ".mp3": true, ".wav": true,
}

// Audience is the classified "shared with" result for a permission.
type Audience struct {
	Label string // who: email list, group name, or link description
	Type  string // Anonymous, Internal, External, Guest, Unknown
}

// SharingType classifies a permission into a sharing type string.
func SharingType(p *msgraph.Permission) string {
	if p.Link != nil {
		switch p.Link.Scope {
		case "anonymous":
			return LinkAnyone
		case "organization":
			return LinkOrganization
		default:
			return LinkSpecificPeople
		}
	}

	if p.GrantedGroup != nil {
		return GroupShare
	}

	if p.GrantedUser != nil {
		return UserShare
	}

	return UnknownShare
}

// SharedWith extracts who the item is shared with and classifies the
// audience. tenantDomain is the tenant's default verified domain; an
// address outside it is External, a guest-marked address is Guest.
// A principal identified only by display name is never External —
// a missing address does not imply external origin.
func SharedWith(p *msgraph.Permission, tenantDomain string) Audience {
	if p.Link != nil {
		switch p.Link.Scope {
		case "anonymous":
			return Audience{Label: "Anyone with the link", Type: AudienceAnonymous}
		case "organization":
			return Audience{Label: "All organization members", Type: AudienceInternal}
		}

		if len(p.GrantedIdentities) > 0 {
			return classifyIdentityList(p.GrantedIdentities, tenantDomain)
		}

		return Audience{Label: "Specific people (details unavailable)", Type: AudienceInternal}
	}

	if p.GrantedGroup != nil {
		label := p.GrantedGroup.DisplayName
		if label == "" {
			label = "Unknown Group"
		}

		return Audience{Label: label, Type: AudienceInternal}
	}

	if p.GrantedUser != nil {
		return classifyUser(*p.GrantedUser, tenantDomain)
	}

	return Audience{Type: AudienceUnknown}
}

// classifyIdentityList handles link permissions scoped to specific people.
// Guest wins over External: one guest recipient marks the whole audience.
func classifyIdentityList(ids []msgraph.Identity, tenantDomain string) Audience {
	var names []string

	hasGuest := false
	hasExternal := false

	for _, id := range ids {
		switch {
		case id.Email != "":
			names = append(names, id.Email)

			if strings.Contains(id.Email, guestMarker) {
				hasGuest = true
			} else if isExternalAddress(id.Email, tenantDomain) {
				hasExternal = true
			}
		case id.DisplayName != "":
			names = append(names, id.DisplayName)
		}
	}

	audType := AudienceInternal
	if hasGuest {
		audType = AudienceGuest
	} else if hasExternal {
		audType = AudienceExternal
	}

	return Audience{Label: strings.Join(names, "; "), Type: audType}
}

// classifyUser handles a direct grant to a single user.
func classifyUser(id msgraph.Identity, tenantDomain string) Audience {
	label := id.Email
	if label == "" {
		label = id.DisplayName
		if label == "" {
			label = "Unknown User"
		}
	}

	switch {
	case strings.Contains(id.Email, guestMarker):
		return Audience{Label: label, Type: AudienceGuest}
	case id.Email != "" && isExternalAddress(id.Email, tenantDomain):
		return Audience{Label: label, Type: AudienceExternal}
	default:
		return Audience{Label: label, Type: AudienceInternal}
	}
}

// isExternalAddress reports whether email falls outside the tenant domain.
// An empty tenant domain disables the check (everything is Internal).
func isExternalAddress(email, tenantDomain string) bool {
	if tenantDomain == "" {
		return false
	}

	return !strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(tenantDomain))
}

// Role extracts the permission role: Owner, Write, Read, or a join of the
// raw role list when none of the known flags are present.
func Role(p *msgraph.Permission) string {
	for _, known := range []struct{ flag, role string }{
		{"owner", "Owner"},
		{"write", "Write"},
		{"read", "Read"},
	} {
		for _, r := range p.Roles {
			if r == known.flag {
				return known.role
			}
		}
	}

	if p.Link != nil {
		switch p.Link.Type {
		case "edit":
			return "Write"
		case "view":
			return "Read"
		}
	}

	if len(p.Roles) > 0 {
		return strings.Join(p.Roles, ", ")
	}

	return "Unknown"
}

// SensitivePath reports whether an item path contains a sensitive keyword.
// The path is NFC-normalized first — the Graph API returns composed and
// decomposed Unicode forms inconsistently across endpoints.
func SensitivePath(itemPath string) bool {
	return sensitiveKeywords.MatchString(norm.NFC.String(itemPath))
}

// TeamsChatPath reports whether an item path belongs to the Teams chat
// files folder.
func TeamsChatPath(itemPath string) bool {
	return teamsChatFolder.MatchString(norm.NFC.String(itemPath))
}

// RiskLevel assigns HIGH/MEDIUM/LOW risk from sharing type, audience type,
// and item path.
func RiskLevel(sharingType, audienceType, itemPath string) string {
	switch audienceType {
	case AudienceAnonymous, AudienceExternal, AudienceGuest:
		return RiskHigh
	}

	if sharingType == LinkAnyone {
		return RiskHigh
	}

	if SensitivePath(itemPath) {
		return RiskHigh
	}

	if sharingType == LinkOrganization {
		return RiskMedium
	}

	return RiskLow
}

// RiskScore computes a 0–100 weighted risk score.
//
// Factors:
//
//	audience scope  (0–30): who can access the item
//	recipient count (0–15): how many people have access
//	sensitive path  (0–20): keywords in folder/file name
//	file type       (0–15): extension indicates data risk
//	permission      (0–10): edit vs read-only
//	asset type      (0–10): folder exposes more than a single file
func RiskScore(audienceType, sharingType, itemPath, role, itemType string, recipientCount int) int {
	score := 0

	switch {
	case audienceType == AudienceAnonymous || sharingType == LinkAnyone:
		score += 30
	case audienceType == AudienceExternal || audienceType == AudienceGuest:
		score += 25
	case sharingType == LinkOrganization:
		score += 15
	default:
		score += 5
	}

	switch {
	case recipientCount >= 20 || audienceType == AudienceAnonymous:
		score += 15
	case recipientCount >= 6:
		score += 10
	case recipientCount >= 2:
		score += 5
	default:
		score += 2
	}

	if SensitivePath(itemPath) {
		score += 20
	}

	ext := strings.ToLower(filepath.Ext(itemPath))

	switch {
	case sensitiveExtensions[ext]:
		score += 15
	case lowRiskExtensions[ext]:
		score += 3
	default:
		score += 8
	}

	switch role {
	case "Write", "Owner":
		score += 10
	case "Read":
		score += 3
	default:
		score += 5
	}

	if itemType == "Folder" {
		score += 10
	} else {
		score += 3
	}

	if score > 100 {
		score = 100
	}

	return score
}

// GrantedBy extracts the email of the identity that granted a permission,
// or empty when the API response does not include one.
func GrantedBy(p *msgraph.Permission) string {
	return p.GrantedBy.Email
}

// PrincipalEmail maps an audience to the email key of its User node.
// Link audiences use reserved pseudo-principals so link shares are
// queryable like direct grants.
func PrincipalEmail(sharingType string, aud Audience) string {
	if aud.Type == AudienceAnonymous {
		return AnonymousPrincipal
	}

	if sharingType == LinkOrganization {
		return OrganizationPrincipal
	}

	return aud.Label
}
