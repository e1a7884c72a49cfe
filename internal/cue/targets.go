package cue

import (
	"encoding/json"
	"strings"
)

// Targets is the normalized targeting shape every reader consumes. Cue
// documents have carried three shapes over time (a bare list of department
// strings, a legacy {roles, users} object, and the current
// {departments, accessRoles} object) and old cues are never rewritten, so
// ParseTargets folds all of them into this one struct at the read boundary.
// Downstream code must never branch on the raw shape again.
type Targets struct {
	Departments []string `json:"departments"`
	AccessRoles []string `json:"accessRoles,omitempty"`
}

// legacyObject covers the pre-departments object shape. Its users list was
// never consulted by the resolver and normalization drops it.
type legacyObject struct {
	Departments *[]string `json:"departments"`
	AccessRoles []string  `json:"accessRoles"`
	Roles       []string  `json:"roles"`
	Users       []string  `json:"users"`
}

// ParseTargets normalizes a raw targets document. Malformed input maps to the
// safest interpretation: empty targets, visible to everyone. The mapping of a
// bare array to department identifiers is one-way and happens only here.
func ParseTargets(raw json.RawMessage) Targets {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Targets{}
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return Targets{}
		}
		return Targets{Departments: list}
	}

	var obj legacyObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Targets{}
	}
	if obj.Departments != nil || len(obj.AccessRoles) > 0 {
		out := Targets{AccessRoles: obj.AccessRoles}
		if obj.Departments != nil {
			out.Departments = *obj.Departments
		}
		return out
	}
	if len(obj.Roles) > 0 {
		return Targets{AccessRoles: obj.Roles}
	}
	return Targets{}
}

// Matches reports whether a member with the given department and access role
// should see a cue carrying these targets. Empty targets are fail-open. When
// both lists are present the semantics are OR: a cue can address all of one
// department and all directors at once.
func (t Targets) Matches(department Department, role AccessRole) bool {
	if len(t.Departments) == 0 && len(t.AccessRoles) == 0 {
		return true
	}
	for _, d := range t.Departments {
		if Department(d) == department {
			return true
		}
	}
	for _, r := range t.AccessRoles {
		if AccessRole(r) == role {
			return true
		}
	}
	return false
}

// Raw re-serializes the normalized shape for storage of newly created cues.
func (t Targets) Raw() json.RawMessage {
	if t.Departments == nil {
		t.Departments = []string{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return json.RawMessage(`{"departments":[]}`)
	}
	return data
}
