package data

import (
	"sort"
	"strings"
)

// Branch is one translation line of a manga.
type Branch struct {
	Name     string
	Chapters []*Chapter
}

// DisplayName returns the branch name or "Unknown" for unnamed branches.
func (b Branch) DisplayName() string {
	if b.Name == "" {
		return "Unknown"
	}
	return b.Name
}

// GroupBranches splits chapters by branch, keeping the provider order inside each
// branch. Branches matching preferred come first, then unnamed ones, then the
// rest; ties are broken by chapter count (descending) and name.
func GroupBranches(chapters []*Chapter, preferred string) []Branch {
	index := make(map[string]int)
	var branches []Branch
	for _, ch := range chapters {
		i, ok := index[ch.Branch]
		if !ok {
			i = len(branches)
			index[ch.Branch] = i
			branches = append(branches, Branch{Name: ch.Branch})
		}
		branches[i].Chapters = append(branches[i].Chapters, ch)
	}

	sort.SliceStable(branches, func(i, j int) bool {
		wi, wj := branchWeight(branches[i].Name, preferred), branchWeight(branches[j].Name, preferred)
		if wi != wj {
			return wi < wj
		}
		if len(branches[i].Chapters) != len(branches[j].Chapters) {
			return len(branches[i].Chapters) > len(branches[j].Chapters)
		}
		return branches[i].Name < branches[j].Name
	})
	return branches
}

// SelectBranch returns the chapters of the named branch, or of the best ranked
// branch when name is empty. The second result is false when no branch matches.
func SelectBranch(chapters []*Chapter, name, preferred string) ([]*Chapter, bool) {
	branches := GroupBranches(chapters, preferred)
	if len(branches) == 0 {
		return nil, false
	}
	if name == "" {
		return branches[0].Chapters, true
	}
	for _, b := range branches {
		if strings.EqualFold(b.Name, name) {
			return b.Chapters, true
		}
	}
	return nil, false
}

func branchWeight(name, preferred string) int {
	switch {
	case name == "":
		return 1
	case preferred != "" && strings.Contains(strings.ToLower(name), strings.ToLower(preferred)):
		return 0
	default:
		return 2
	}
}
