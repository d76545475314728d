package models

import (
	"reflect"
	"testing"
)

func TestStudentNameFull(t *testing.T) {
	tests := []struct {
		name StudentName
		want string
	}{
		{StudentName{Surname: "Ivanov", Name: "Ivan", Patronymic: "Ivanovich"}, "Ivanov Ivan Ivanovich"},
		{StudentName{Surname: "Smith", Name: "Anna"}, "Smith Anna"},
		{StudentName{Surname: "Smith", Name: "Anna", Patronymic: "  "}, "Smith Anna"},
	}
	for _, tt := range tests {
		if got := tt.name.Full(); got != tt.want {
			t.Errorf("Full() = %q, want %q", got, tt.want)
		}
	}
}

func TestLabDefaults(t *testing.T) {
	lab := Lab{ShortName: "LR1", GitHubPrefix: "lab1"}

	if got := lab.RepoName("octocat"); got != "lab1-octocat" {
		t.Errorf("unexpected repo name %q", got)
	}
	if !reflect.DeepEqual(lab.RequiredWorkflows(), DefaultWorkflows) {
		t.Errorf("expected default workflows, got %v", lab.RequiredWorkflows())
	}

	lab.Workflows = []string{"build"}
	if !reflect.DeepEqual(lab.RequiredWorkflows(), []string{"build"}) {
		t.Errorf("expected configured workflows, got %v", lab.RequiredWorkflows())
	}
}

func TestLabByShortName(t *testing.T) {
	course := Course{Labs: []Lab{{ID: "lab1", ShortName: "LR1"}, {ID: "lab2", ShortName: "LR2"}}}

	lab, ok := course.LabByShortName("LR2")
	if !ok || lab.ID != "lab2" {
		t.Fatalf("expected lab2, got %+v (ok=%v)", lab, ok)
	}
	if _, ok := course.LabByShortName("LR9"); ok {
		t.Errorf("expected LR9 to be missing")
	}
}
