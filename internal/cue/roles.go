package cue

type AccessRole string

const (
	RoleDirector     AccessRole = "DIRECTOR"
	RoleStageManager AccessRole = "STAGE_MANAGER"
	RoleCrew         AccessRole = "CREW"
)

type Department string

const (
	DeptDirectorTD      Department = "DIRECTOR_TD"
	DeptStageManager    Department = "STAGE_MANAGER"
	DeptAsstStageMgr    Department = "ASSISTANT_STAGE_MANAGER"
	DeptAudioA1         Department = "AUDIO_A1"
	DeptAudioA2         Department = "AUDIO_A2"
	DeptLightingLXOp    Department = "LIGHTING_LX_OP"
	DeptLightingLXDes   Department = "LIGHTING_LX_DESIGN"
	DeptVideoProjection Department = "VIDEO_PROJ"
	DeptVideoShading    Department = "VIDEO_SHADING"
	DeptGraphicsGFX     Department = "GRAPHICS_GFX"
	DeptDeck            Department = "DECK"
	DeptFOH             Department = "FOH"
	DeptCustom          Department = "CUSTOM"
)

var departments = map[Department]struct{}{
	DeptDirectorTD: {}, DeptStageManager: {}, DeptAsstStageMgr: {},
	DeptAudioA1: {}, DeptAudioA2: {},
	DeptLightingLXOp: {}, DeptLightingLXDes: {},
	DeptVideoProjection: {}, DeptVideoShading: {},
	DeptGraphicsGFX: {}, DeptDeck: {}, DeptFOH: {}, DeptCustom: {},
}

func ValidDepartment(department Department) bool {
	_, ok := departments[department]
	return ok
}

// DeriveAccessRole maps a department to the access role a member lands on
// when joining. The mapping is advisory (it picks a default console, director
// vs. feed) and is not a security check; unrecognized departments fall back
// to crew semantics.
func DeriveAccessRole(department Department) AccessRole {
	switch department {
	case DeptDirectorTD:
		return RoleDirector
	case DeptStageManager, DeptAsstStageMgr:
		return RoleStageManager
	default:
		return RoleCrew
	}
}

// NormalizeAccessRole clamps arbitrary stored role strings to a known role,
// defaulting to crew.
func NormalizeAccessRole(role string) AccessRole {
	switch AccessRole(role) {
	case RoleDirector, RoleStageManager, RoleCrew:
		return AccessRole(role)
	default:
		return RoleCrew
	}
}
