package tui

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// probeRepoInfo posts the repository badge (repo name and current branch)
// for the working directory, if it is inside a git checkout. Runs on a
// background goroutine; outside a checkout it posts nothing.
func probeRepoInfo(cwd string, bus *Bus) {
	top, err := gitOutput(cwd, "rev-parse", "--show-toplevel")
	if err != nil || top == "" {
		return
	}
	branch, _ := gitOutput(cwd, "branch", "--show-current")
	bus.Send(UpdateRepoInfoMsg{RepoName: filepath.Base(top), GitBranch: branch})
}

// collectDiff posts the working tree diff. An error or a clean tree posts
// an empty diff, which the overlay shows as "No changes detected."
func collectDiff(cwd string, bus *Bus) {
	out, err := gitOutput(cwd, "diff")
	if err != nil {
		out = ""
	}
	bus.Send(DiffResultMsg{Text: out})
}

func gitOutput(cwd string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	out, err := cmd.Output()
	return strings.TrimSpace(string(out)), err
}
