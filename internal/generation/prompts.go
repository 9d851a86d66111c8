package generation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/feelkraft/comic-api/internal/providers/groq"
)

// PromptContext carries everything needed to render page prompts for one job.
type PromptContext struct {
	Theme          string
	Style          string
	Story          string
	Character1Name string
	Character2Name string
	Relationship   string
	Tone           string
	Quote          string
}

type themeSetting struct {
	mood     string
	colors   string
	elements string
}

var themeSettings = map[string]themeSetting{
	"romantic": {
		mood:     "warm, intimate, loving",
		colors:   "soft pinks, warm reds, golden hour lighting",
		elements: "hearts, flowers, cozy settings, romantic gestures",
	},
	"funny": {
		mood:     "playful, humorous, light-hearted",
		colors:   "bright and vibrant, cartoon-like",
		elements: "exaggerated expressions, comedic timing, visual gags",
	},
	"adventure": {
		mood:     "exciting, dynamic, bold",
		colors:   "rich and saturated, dramatic lighting",
		elements: "action scenes, travel, discovery, exploration",
	},
	"heartfelt": {
		mood:     "emotional, touching, sincere",
		colors:   "warm earth tones, soft lighting",
		elements: "meaningful moments, genuine emotions, tender gestures",
	},
	"nostalgic": {
		mood:     "reminiscent, warm memories, sentimental",
		colors:   "vintage tones, sepia hints, soft focus",
		elements: "old photographs, memory scenes, past events",
	},
}

var styleSettings = map[string]string{
	"disney-pixar": "bright Disney-Pixar inspired movie style, clean lines, vibrant 3D colors, high-end animation aesthetic",
	"manga":        "Japanese manga style, expressive eyes, dynamic poses, screen tones. Use English text only for any speech bubbles or text.",
	"ghibli":       "Studio Ghibli inspired anime style, soft painted backgrounds, expressive character designs, whimsical and magical atmosphere",
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// segmentStory splits a story into pageCount chunks of whole sentences, so
// each interior page gets a contiguous slice of the narrative.
func segmentStory(story string, pageCount int) []string {
	segments := make([]string, pageCount)
	trimmed := strings.TrimSpace(story)
	if trimmed == "" {
		return segments
	}
	sentences := sentencePattern.FindAllString(trimmed, -1)
	if len(sentences) == 0 {
		sentences = []string{trimmed}
	}
	perPage := (len(sentences) + pageCount - 1) / pageCount
	for i := 0; i < pageCount; i++ {
		start := i * perPage
		if start >= len(sentences) {
			segments[i] = fmt.Sprintf("Continue the story with page %d", i+1)
			continue
		}
		end := start + perPage
		if end > len(sentences) {
			end = len(sentences)
		}
		segment := strings.TrimSpace(strings.Join(sentences[start:end], " "))
		if segment == "" {
			segment = fmt.Sprintf("Continue the story with page %d", i+1)
		}
		segments[i] = segment
	}
	return segments
}

func basePrompt(ctx PromptContext) string {
	theme, ok := themeSettings[coalesce(ctx.Tone, ctx.Theme)]
	if !ok {
		theme = themeSettings["romantic"]
	}
	artStyle, ok := styleSettings[ctx.Style]
	if !ok {
		artStyle = styleSettings["disney-pixar"]
	}
	char1 := coalesce(ctx.Character1Name, "Character 1")
	char2 := coalesce(ctx.Character2Name, "Character 2")
	relationship := coalesce(ctx.Relationship, "romantic partners")

	return fmt.Sprintf(`Create a stunning comic book page in %s style.
Characters: %s and %s who are %s.
Mood: %s
Color palette: %s
Visual elements: %s
The characters should look consistent throughout, with %s and %s clearly distinguishable.`,
		artStyle, char1, char2, relationship, theme.mood, theme.colors, theme.elements, char1, char2)
}

// PreviewPrompt renders the single-page teaser prompt for the free tier.
func PreviewPrompt(ctx PromptContext) string {
	base := basePrompt(ctx)
	storyContext := "Create a romantic moment between the two characters."
	if story := strings.TrimSpace(ctx.Story); story != "" {
		excerpt := story
		if len(excerpt) > 300 {
			excerpt = excerpt[:300]
		}
		storyContext = fmt.Sprintf("Story summary: %s...", excerpt)
	}
	return fmt.Sprintf(`%s

Create a single comic page with 5 panels in a zig-zag layout showing:
%s

This is a teaser/preview page that captures the essence of their story.
Include speech bubbles with heartfelt dialogue.
Make it visually striking as a standalone piece.`, base, storyContext)
}

// FullComicPrompts renders one prompt per page for the paid product: front
// cover, interior pages from the structure breakdown, back cover. The
// returned slice length is always len(structure.Pages)+2 and its order is the
// page order.
func FullComicPrompts(ctx PromptContext, structure *groq.StoryStructure) []string {
	base := basePrompt(ctx)
	slogan := coalesce(structure.GeneratedSlogan, ctx.Quote, "Love is a journey we take together.")
	title := coalesce(structure.FrontCoverTitle, fmt.Sprintf("Our %s", ctx.Theme))

	prompts := make([]string, 0, len(structure.Pages)+2)
	prompts = append(prompts, fmt.Sprintf(`%s

Front cover of a comic book. Title text %q. %s --ar 3:4`, base, title, structure.FrontCover))

	segments := segmentStory(ctx.Story, len(structure.Pages))
	for i, desc := range structure.Pages {
		prompt := fmt.Sprintf(`%s

Comic page %d, 5 panel layout. %s`, base, i+1, desc)
		if segments[i] != "" {
			prompt += fmt.Sprintf("\nStory content for this page: %s", segments[i])
		}
		prompts = append(prompts, prompt+" --ar 3:4")
	}

	prompts = append(prompts, fmt.Sprintf(`%s

Back cover of a comic book. %s Text %q at the bottom. --ar 3:4`, base, structure.BackCover, slogan))
	return prompts
}

var nsfwKeywords = []string{
	"nude", "naked", "sex", "porn", "xxx", "nsfw", "erotic",
	"killing", "murder", "blood", "gore",
}

// StoryAllowed applies the keyword guard used before paid generation runs.
func StoryAllowed(story string) bool {
	lower := strings.ToLower(story)
	for _, keyword := range nsfwKeywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}
	return true
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
