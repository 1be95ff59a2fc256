package category

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category 是分类法中的一个类别。
type Category struct {
	Name          string   `yaml:"name" json:"name"`
	TitleKeywords []string `yaml:"title_keywords" json:"title_keywords"`
	Keywords      []string `yaml:"keywords" json:"keywords"`
}

// Taxonomy 描述一套封闭的类别集合以及拒绝规则，属于部署相关的业务配置。
type Taxonomy struct {
	Categories      []Category `yaml:"categories" json:"categories"`
	TitleExclusions []string   `yaml:"title_exclusions" json:"title_exclusions"`
	MinTextHits     int        `yaml:"min_text_hits" json:"min_text_hits"`
}

const defaultMinTextHits = 2

// LoadTaxonomy 从 YAML 文件加载分类法。
func LoadTaxonomy(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("read taxonomy: %w", err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy 解析并校验 YAML。
func ParseTaxonomy(data []byte) (Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("parse taxonomy: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Taxonomy{}, err
	}
	return t, nil
}

// Validate 检查类别非空、名称唯一且每个类别至少有一个关键词。
func (t Taxonomy) Validate() error {
	if len(t.Categories) == 0 {
		return errors.New("taxonomy: no categories")
	}
	seen := make(map[string]bool, len(t.Categories))
	for i, c := range t.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("taxonomy: category %d has no name", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("taxonomy: duplicate category %q", name)
		}
		seen[key] = true
		if len(c.TitleKeywords)+len(c.Keywords) == 0 {
			return fmt.Errorf("taxonomy: category %q has no keywords", name)
		}
	}
	if t.MinTextHits < 0 {
		return errors.New("taxonomy: min_text_hits must not be negative")
	}
	return nil
}

// Names 返回类别名称。
func (t Taxonomy) Names() []string {
	out := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		out = append(out, c.Name)
	}
	return out
}

// DefaultTaxonomy 是创意产业职位板使用的六类分类法。
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		MinTextHits: defaultMinTextHits,
		TitleExclusions: []string{
			"recruiter", "recruiting", "talent acquisition", "sales", "account executive", "account manager",
			"accountant", "finance", "legal", "counsel", "people partner", "HR", "office manager",
			"customer support", "customer success", "marketing manager", "data analyst", "recrutador", "vendas",
		},
		Categories: []Category{
			{
				Name: "Game Dev",
				TitleKeywords: []string{
					"game developer", "game programmer", "gameplay", "game engineer", "engine programmer",
					"tools programmer", "unity developer", "unreal developer", "game designer", "level designer",
					"technical designer", "desenvolvedor de jogos", "programador de jogos",
				},
				Keywords: []string{
					"Unity", "Unreal", "Godot", "game engine", "gameplay", "C++", "C#", "multiplayer",
					"game development", "desenvolvimento de jogos",
				},
			},
			{
				Name: "3D",
				TitleKeywords: []string{
					"3D artist", "3D modeler", "3D generalist", "character artist", "environment artist",
					"prop artist", "hard surface", "technical artist", "lighting artist", "texture artist",
					"artista 3D", "modelador 3D",
				},
				Keywords: []string{
					"Blender", "Maya", "ZBrush", "3ds Max", "Substance Painter", "3D modeling", "texturing",
					"retopology", "modelagem 3D", "PBR",
				},
			},
			{
				Name: "2D Art",
				TitleKeywords: []string{
					"2D artist", "concept artist", "illustrator", "ilustrador", "pixel artist", "UI artist",
					"splash artist", "artista 2D",
				},
				Keywords: []string{
					"Photoshop", "Procreate", "concept art", "illustration", "ilustração", "pixel art",
					"Clip Studio", "2D art",
				},
			},
			{
				Name: "Animation",
				TitleKeywords: []string{
					"animator", "animation", "animador", "animação", "rigger", "rigging", "motion capture",
					"cinematic",
				},
				Keywords: []string{
					"Spine", "Toon Boom", "keyframe", "rigging", "motion capture", "mocap", "animation", "animação",
				},
			},
			{
				Name: "Design",
				TitleKeywords: []string{
					"UI designer", "UX designer", "UI/UX", "product designer", "graphic designer",
					"visual designer", "designer gráfico", "web designer", "motion designer",
				},
				Keywords: []string{
					"Figma", "Adobe XD", "Sketch", "wireframes", "prototyping", "design system", "user research",
					"Illustrator",
				},
			},
			{
				Name: "VFX",
				TitleKeywords: []string{
					"VFX", "visual effects", "FX artist", "effects artist", "compositor", "efeitos visuais",
				},
				Keywords: []string{
					"Houdini", "Nuke", "Niagara", "particle", "particles", "compositing", "simulation", "VFX",
				},
			},
		},
	}
}
