package suggestion

import (
	"sort"
	"strings"
)

// FillIn is a suggestion that reduces to inserting Text between Prefix and
// Suffix at the cursor.
type FillIn struct {
	Text   string
	Prefix string
	Suffix string
}

// State holds the suggestion files of one request, keyed by document ID.
type State struct {
	files  map[string]*File
	fillIn *FillIn
}

func NewState() *State {
	return &State{files: make(map[string]*File)}
}

// AddFile returns the file for id, creating it if needed.
func (s *State) AddFile(id string) *File {
	if f, ok := s.files[id]; ok {
		return f
	}
	f := NewFile(id)
	s.files[id] = f
	return f
}

func (s *State) File(id string) (*File, bool) {
	f, ok := s.files[id]
	return f, ok
}

// Files returns the files sorted by ID.
func (s *State) Files() []*File {
	out := make([]*File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func (s *State) HasSuggestions() bool {
	for _, f := range s.files {
		if !f.IsEmpty() {
			return true
		}
	}
	return false
}

// ValidateFiles drops files that no longer have any group.
func (s *State) ValidateFiles() {
	for id, f := range s.files {
		if f.IsEmpty() {
			delete(s.files, id)
		}
	}
}

func (s *State) Clear() {
	s.files = make(map[string]*File)
	s.fillIn = nil
}

func (s *State) SetFillIn(f *FillIn) {
	s.fillIn = f
}

// FillInAtCursor returns the fill-in-at-cursor reduction, if one was found.
func (s *State) FillInAtCursor() (FillIn, bool) {
	if s.fillIn == nil {
		return FillIn{}, false
	}
	return *s.fillIn, true
}

// ReduceToFillIn reports whether modified is prefix + something + suffix and
// returns that something.
func ReduceToFillIn(modified, prefix, suffix string) (*FillIn, bool) {
	if len(modified) < len(prefix)+len(suffix) {
		return nil, false
	}
	if !strings.HasPrefix(modified, prefix) || !strings.HasSuffix(modified, suffix) {
		return nil, false
	}
	return &FillIn{
		Text:   modified[len(prefix) : len(modified)-len(suffix)],
		Prefix: prefix,
		Suffix: suffix,
	}, true
}
