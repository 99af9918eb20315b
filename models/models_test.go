package models

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to DeploymentStatus
		want     bool
	}{
		{StatusPending, StatusDeploying, true},
		{StatusDeploying, StatusSuccess, true},
		{StatusDeploying, StatusFailed, true},
		{StatusPending, StatusSuccess, false},
		{StatusPending, StatusFailed, false},
		{StatusSuccess, StatusDeploying, false},
		{StatusFailed, StatusDeploying, false},
		{StatusSuccess, StatusFailed, false},
	}

	for _, c := range cases {
		got := CanTransition(c.from, c.to)
		if got != c.want {
			t.Errorf("CanTransition(%v, %v) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestBuildTypeFor(t *testing.T) {
	cases := []struct {
		source DockerfileSource
		want   BuildType
	}{
		{DockerfileUser, BuildTypeStandalone},
		{DockerfileDefaultStandalone, BuildTypeStandalone},
		{DockerfileUserClassicAssumed, BuildTypeClassic},
		{DockerfileDefaultClassic, BuildTypeClassic},
	}

	for _, c := range cases {
		got := BuildTypeFor(c.source)
		if got != c.want {
			t.Errorf("BuildTypeFor(%v) = %v, want %v", c.source, got, c.want)
		}
	}
}

func TestDeployment_IsTerminal(t *testing.T) {
	for _, status := range []DeploymentStatus{StatusSuccess, StatusFailed} {
		d := &Deployment{Status: status}
		if !d.IsTerminal() {
			t.Errorf("status %v should be terminal", status)
		}
	}
	for _, status := range []DeploymentStatus{StatusPending, StatusDeploying} {
		d := &Deployment{Status: status}
		if d.IsTerminal() {
			t.Errorf("status %v should not be terminal", status)
		}
	}
}

func TestDeployment_IsActive(t *testing.T) {
	for _, status := range []DeploymentStatus{StatusDeploying, StatusSuccess} {
		d := &Deployment{Status: status}
		if !d.IsActive() {
			t.Errorf("status %v should be active", status)
		}
	}
	for _, status := range []DeploymentStatus{StatusPending, StatusFailed} {
		d := &Deployment{Status: status}
		if d.IsActive() {
			t.Errorf("status %v should not be active", status)
		}
	}
}
