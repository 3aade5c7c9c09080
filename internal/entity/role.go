package entity

import "strings"

// 角色是封闭集合，写入前必须经过 IsValidRole 校验。
const (
	UserRoleAdmin          = "admin"
	UserRoleRepresentative = "representative"
	UserRoleConstituent    = "constituent"

	UserRoleCompanyAdmin   = "company_admin"
	UserRoleCompanyManager = "company_manager"
	UserRoleCompanySupport = "company_support"
	UserRoleCompanyAnalyst = "company_analyst"

	UserRoleChiefOfStaff           = "chief_of_staff"
	UserRoleCommunicationsDirector = "communications_director"
	UserRoleOfficeAdmin            = "office_admin"
	UserRoleStaffMember            = "staff_member"

	UserRoleCampaignManager      = "campaign_manager"
	UserRoleCampaignCoordinator  = "campaign_coordinator"
	UserRoleFieldOrganizer       = "field_organizer"
	UserRoleVolunteerCoordinator = "volunteer_coordinator"
	UserRoleTempStaff            = "temp_staff"
	UserRoleIntern               = "intern"
	UserRoleVolunteer            = "volunteer"
)

var allRoles = []string{
	UserRoleRepresentative,
	UserRoleCompanyAdmin,
	UserRoleCompanyManager,
	UserRoleCompanySupport,
	UserRoleCompanyAnalyst,
	UserRoleChiefOfStaff,
	UserRoleCommunicationsDirector,
	UserRoleOfficeAdmin,
	UserRoleStaffMember,
	UserRoleCampaignManager,
	UserRoleCampaignCoordinator,
	UserRoleFieldOrganizer,
	UserRoleVolunteerCoordinator,
	UserRoleTempStaff,
	UserRoleIntern,
	UserRoleVolunteer,
	UserRoleConstituent,
	UserRoleAdmin,
}

// Roles returns every assignable role.
func Roles() []string {
	out := make([]string, len(allRoles))
	copy(out, allRoles)
	return out
}

// IsValidRole reports whether role is one of the known role tags.
func IsValidRole(role string) bool {
	for _, r := range allRoles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeRole trims and lowercases a role; unknown roles yield "".
func NormalizeRole(role string) string {
	normalized := strings.ToLower(strings.TrimSpace(role))
	if !IsValidRole(normalized) {
		return ""
	}
	return normalized
}

// IsRepresentativeOffice reports whether the role belongs to a representative's permanent office.
func IsRepresentativeOffice(role string) bool {
	switch role {
	case UserRoleRepresentative, UserRoleChiefOfStaff, UserRoleCommunicationsDirector,
		UserRoleOfficeAdmin, UserRoleStaffMember:
		return true
	}
	return false
}

// IsCampaignStaff reports whether the role is a temporary campaign role.
func IsCampaignStaff(role string) bool {
	switch role {
	case UserRoleCampaignManager, UserRoleCampaignCoordinator, UserRoleFieldOrganizer,
		UserRoleVolunteerCoordinator, UserRoleTempStaff, UserRoleIntern, UserRoleVolunteer:
		return true
	}
	return false
}

// IsCompanyRole reports whether the role belongs to the platform operator's staff.
func IsCompanyRole(role string) bool {
	switch role {
	case UserRoleCompanyAdmin, UserRoleCompanyManager, UserRoleCompanySupport, UserRoleCompanyAnalyst:
		return true
	}
	return false
}
