package tags

import (
	"strings"

	"ats-radar/internal/textmatch"
)

// Entry 是受控词表中的一个标签及其同义词。
type Entry struct {
	Tag     string   `yaml:"tag" json:"tag"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// SeniorTag 在标题出现资深职级时总是加入。
const SeniorTag = "Senior"

var defaultEntries = []Entry{
	{Tag: "Unity", Aliases: []string{"Unity3D"}},
	{Tag: "Unreal Engine", Aliases: []string{"Unreal", "UE4", "UE5"}},
	{Tag: "Godot"},
	{Tag: "Blender"},
	{Tag: "Maya"},
	{Tag: "3ds Max", Aliases: []string{"3dsMax", "3D Studio Max"}},
	{Tag: "ZBrush"},
	{Tag: "Substance Painter", Aliases: []string{"Substance 3D Painter"}},
	{Tag: "Substance Designer", Aliases: []string{"Substance 3D Designer"}},
	{Tag: "Houdini"},
	{Tag: "Cinema 4D", Aliases: []string{"C4D"}},
	{Tag: "Photoshop"},
	{Tag: "Illustrator", Aliases: []string{"Adobe Illustrator"}},
	{Tag: "After Effects"},
	{Tag: "Spine", Aliases: []string{"Spine2D"}},
	{Tag: "Figma"},
	{Tag: "Nuke"},
	{Tag: "Toon Boom", Aliases: []string{"Toon Boom Harmony"}},
	{Tag: "C++"},
	{Tag: "C#"},
	{Tag: "Python"},
	{Tag: "Lua"},
	{Tag: "JavaScript"},
	{Tag: "TypeScript"},
	{Tag: "Go", Aliases: []string{"Golang"}},
	{Tag: "Rust"},
	{Tag: "Java"},
	{Tag: "Kotlin"},
	{Tag: "Swift"},
	{Tag: "HLSL"},
	{Tag: "GLSL"},
	{Tag: "Mobile", Aliases: []string{"iOS", "Android"}},
	{Tag: "Console", Aliases: []string{"PlayStation", "Xbox", "Nintendo Switch"}},
	{Tag: "VR", Aliases: []string{"virtual reality", "realidade virtual"}},
	{Tag: "AR", Aliases: []string{"augmented reality", "realidade aumentada"}},
	{Tag: "Game Design", Aliases: []string{"game designer"}},
	{Tag: "Level Design", Aliases: []string{"level designer"}},
	{Tag: "Concept Art", Aliases: []string{"concept artist"}},
	{Tag: "Character Art", Aliases: []string{"character artist"}},
	{Tag: "Environment Art", Aliases: []string{"environment artist"}},
	{Tag: "3D Modeling", Aliases: []string{"3D modelling", "3D modeler", "modelagem 3D"}},
	{Tag: "Texturing", Aliases: []string{"texturização", "texture artist"}},
	{Tag: "Rigging", Aliases: []string{"rigger"}},
	{Tag: "Animation", Aliases: []string{"animator", "animação", "animador"}},
	{Tag: "Technical Art", Aliases: []string{"technical artist", "tech artist"}},
	{Tag: "Shaders", Aliases: []string{"shader"}},
	{Tag: "VFX", Aliases: []string{"visual effects", "efeitos visuais"}},
	{Tag: "UI/UX", Aliases: []string{"UI", "UX", "user interface", "user experience"}},
	{Tag: "Illustration", Aliases: []string{"ilustração", "ilustrador"}},
	{Tag: "Pixel Art"},
	{Tag: "Motion Graphics", Aliases: []string{"motion designer"}},
	{Tag: "Gameplay", Aliases: []string{"gameplay programmer"}},
	{Tag: "Multiplayer", Aliases: []string{"netcode"}},
	{Tag: "Narrative", Aliases: []string{"narrative designer"}},
	{Tag: "Sound Design", Aliases: []string{"sound designer", "audio designer"}},
	{Tag: "QA", Aliases: []string{"quality assurance", "game tester"}},
	{Tag: "Live Ops", Aliases: []string{"LiveOps"}},
	{Tag: SeniorTag},
}

// Vocabulary 是标签白名单以及按词边界匹配的关键词。
type Vocabulary struct {
	entries  []Entry
	lookup   map[string]string
	matchers []textmatch.Set
}

// DefaultVocabulary 返回内置词表。
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(defaultEntries)
}

// NewVocabulary 根据条目构建词表，标签本身也作为关键词。
func NewVocabulary(entries []Entry) *Vocabulary {
	v := &Vocabulary{lookup: make(map[string]string)}
	for _, e := range entries {
		tag := strings.TrimSpace(e.Tag)
		if tag == "" {
			continue
		}
		v.entries = append(v.entries, Entry{Tag: tag, Aliases: e.Aliases})
		v.lookup[strings.ToLower(tag)] = tag
		for _, alias := range e.Aliases {
			if a := strings.TrimSpace(alias); a != "" {
				v.lookup[strings.ToLower(a)] = tag
			}
		}
		v.matchers = append(v.matchers, textmatch.NewSet(append([]string{tag}, e.Aliases...)...))
	}
	return v
}

// Canonical 返回白名单中的标准写法，不在白名单中返回 false。
func (v *Vocabulary) Canonical(tag string) (string, bool) {
	c, ok := v.lookup[strings.ToLower(strings.TrimSpace(tag))]
	return c, ok
}

// Tags 按词表顺序返回所有标签。
func (v *Vocabulary) Tags() []string {
	out := make([]string, 0, len(v.entries))
	for _, e := range v.entries {
		out = append(out, e.Tag)
	}
	return out
}
