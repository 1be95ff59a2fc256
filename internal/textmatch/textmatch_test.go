package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordRespectsWordBoundaries(t *testing.T) {
	goKw := Keyword("Go")
	assert.False(t, goKw.Match("I work at Google"))
	assert.False(t, goKw.Match("Django developer"))
	assert.False(t, goKw.Match("we go fast"))
	assert.True(t, goKw.Match("I code in Go"))
	assert.True(t, goKw.Match("Go, Rust"))
}

func TestKeywordWithSymbols(t *testing.T) {
	assert.True(t, Keyword("C++").Match("Strong C++ skills"))
	assert.True(t, Keyword("C#").Match("Unity (C#)"))
	assert.False(t, Keyword("C").Match("Strong C++ skills"))
	assert.True(t, Keyword("Node.js").Match("node.js backend"))
}

func TestKeywordIgnoresCaseForLongWords(t *testing.T) {
	assert.True(t, Keyword("Unreal Engine").Match("UNREAL ENGINE 5"))
	assert.True(t, Keyword("estágio").Match("Vaga de Estágio"))
}

func TestSetCount(t *testing.T) {
	set := NewSet("Maya", "Blender", "", "ZBrush")
	assert.Len(t, set, 3)
	assert.Equal(t, 2, set.Count("Maya and Blender required"))
	assert.True(t, set.Any("zbrush"))
	assert.False(t, set.Any("Photoshop"))
}
