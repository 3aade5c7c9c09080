// Package authz holds the single role-to-capability table used by every guarded handler.
package authz

import "civicportal/internal/entity"

type Action string

const (
	CommunicationsSend      Action = "communications.send"
	CommunicationsReadOwn   Action = "communications.read_own"
	CommunicationsReadAll   Action = "communications.read_all"
	UsersManage             Action = "users.manage"
	UsersInvite             Action = "users.invite"
	SessionsSweep           Action = "sessions.sweep"
	ConstituentsRead        Action = "constituents.read"
	ProfilesManage          Action = "profiles.manage"
	DashboardAdmin          Action = "dashboard.admin"
	DashboardRepresentative Action = "dashboard.representative"
	DashboardConstituent    Action = "dashboard.constituent"
	DashboardStaff          Action = "dashboard.staff"
)

var capabilities = map[string][]Action{
	entity.UserRoleAdmin: {
		CommunicationsSend, CommunicationsReadOwn, CommunicationsReadAll,
		UsersManage, UsersInvite, SessionsSweep, ConstituentsRead, ProfilesManage,
		DashboardAdmin, DashboardRepresentative, DashboardStaff,
	},
	entity.UserRoleCompanyAdmin: {
		UsersManage, UsersInvite, SessionsSweep, ConstituentsRead, ProfilesManage,
		DashboardAdmin, CommunicationsReadAll,
	},
	entity.UserRoleCompanyManager: {UsersInvite, DashboardAdmin, CommunicationsReadAll},
	entity.UserRoleCompanySupport: {DashboardAdmin, CommunicationsReadAll},
	entity.UserRoleCompanyAnalyst: {DashboardAdmin},

	entity.UserRoleRepresentative: {
		CommunicationsSend, CommunicationsReadOwn, UsersInvite, ConstituentsRead, ProfilesManage,
		DashboardRepresentative, DashboardStaff,
	},
	entity.UserRoleChiefOfStaff:           {CommunicationsSend, CommunicationsReadOwn, UsersInvite, ConstituentsRead, ProfilesManage, DashboardStaff},
	entity.UserRoleCommunicationsDirector: {CommunicationsSend, CommunicationsReadOwn, ConstituentsRead, DashboardStaff},
	entity.UserRoleOfficeAdmin:            {CommunicationsSend, CommunicationsReadOwn, ConstituentsRead, DashboardStaff},
	entity.UserRoleStaffMember:            {CommunicationsReadOwn, ConstituentsRead, DashboardStaff},

	entity.UserRoleCampaignManager:      {CommunicationsReadOwn, DashboardStaff},
	entity.UserRoleCampaignCoordinator:  {CommunicationsReadOwn, DashboardStaff},
	entity.UserRoleFieldOrganizer:       {CommunicationsReadOwn, DashboardStaff},
	entity.UserRoleVolunteerCoordinator: {CommunicationsReadOwn, DashboardStaff},
	entity.UserRoleTempStaff:            {CommunicationsReadOwn, DashboardStaff},
	entity.UserRoleIntern:               {CommunicationsReadOwn},
	entity.UserRoleVolunteer:            {CommunicationsReadOwn},

	entity.UserRoleConstituent: {CommunicationsReadOwn, DashboardConstituent},
}

// HasCapability reports whether role may perform action. Unknown roles can do nothing.
func HasCapability(role string, action Action) bool {
	for _, a := range capabilities[role] {
		if a == action {
			return true
		}
	}
	return false
}

// Capabilities lists the actions granted to role.
func Capabilities(role string) []Action {
	granted := capabilities[role]
	out := make([]Action, len(granted))
	copy(out, granted)
	return out
}

// CanAssignRole reports whether an actor holding actorRole may grant targetRole to another account.
// Platform roles are reserved to platform administrators; office inviters may only staff their office.
func CanAssignRole(actorRole, targetRole string) bool {
	if !entity.IsValidRole(targetRole) {
		return false
	}
	switch actorRole {
	case entity.UserRoleAdmin:
		return true
	case entity.UserRoleCompanyAdmin:
		return targetRole != entity.UserRoleAdmin
	case entity.UserRoleCompanyManager:
		return !entity.IsCompanyRole(targetRole) && targetRole != entity.UserRoleAdmin
	case entity.UserRoleRepresentative, entity.UserRoleChiefOfStaff:
		return (entity.IsRepresentativeOffice(targetRole) && targetRole != entity.UserRoleRepresentative) ||
			entity.IsCampaignStaff(targetRole)
	}
	return false
}

// CanManageUser reports whether actor may edit target's account. Everyone may
// edit themselves; otherwise the actor must be able to grant target's current role.
func CanManageUser(actorRole string, actorID uint, targetRole string, targetID uint) bool {
	if actorID != 0 && actorID == targetID {
		return true
	}
	return CanAssignRole(actorRole, targetRole)
}
