package groq

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StaticRefiner produces deterministic output without calling any model. It
// backs the client when the API is unreachable or unconfigured.
type StaticRefiner struct {
	titleCaser cases.Caser
}

func NewStaticRefiner() *StaticRefiner {
	return &StaticRefiner{titleCaser: cases.Title(language.English)}
}

func (s *StaticRefiner) RefineStory(_ context.Context, story string) (string, error) {
	return strings.TrimSpace(story), nil
}

func (s *StaticRefiner) StoryStructure(_ context.Context, req StructureRequest) (*StoryStructure, error) {
	pageCount := req.PageCount
	if pageCount <= 0 {
		pageCount = 5
	}
	pages := make([]string, pageCount)
	for i := range pages {
		pages[i] = fmt.Sprintf("A comic book page depicting scene %d from the story.", i+1)
	}
	title := "Our Story"
	if theme := strings.TrimSpace(req.Theme); theme != "" {
		title = s.titleCaser.String(strings.ReplaceAll(theme, "_", " "))
	}
	return &StoryStructure{
		FrontCoverTitle: title,
		FrontCover:      "A beautiful comic book cover art suitable for the story.",
		Pages:           pages,
		BackCover:       "A conclusion scene with a quote.",
		GeneratedSlogan: "A story worth remembering.",
	}, nil
}

var _ Refiner = (*StaticRefiner)(nil)
