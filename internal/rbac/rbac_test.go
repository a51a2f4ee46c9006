package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionAdmin, true},
		{RoleAdmin, ActionExport, true},
		{RoleMember, ActionRead, true},
		{RoleMember, ActionComment, true},
		{RoleMember, ActionWrite, true},
		{RoleMember, ActionExport, true},
		{RoleMember, ActionAdmin, false},
		{RoleViewer, ActionRead, true},
		{RoleViewer, ActionComment, false},
		{RoleViewer, ActionExport, false},
		{Role("ghost"), ActionRead, false},
	}

	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Error("expected admin to stay admin")
	}
	if Normalize("member") != RoleMember {
		t.Error("expected member to stay member")
	}
	if Normalize("") != RoleViewer {
		t.Error("expected empty role to default to viewer")
	}
	if Normalize("superuser") != RoleViewer {
		t.Error("expected unknown role to default to viewer")
	}
}
