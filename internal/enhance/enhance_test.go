package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ats-radar/internal/llm"
	"ats-radar/internal/markdown"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawPosting = `<div><b>About us</b></div><div>We are an independent studio building cozy mobile games for players around the world.</div>` +
	`<p>Our team of forty people works fully remote across Latin America.</p>` +
	`<h3>What you will do</h3><ul><li>Create stylised 3D characters and props for live games</li><li>Work closely with animators and technical artists</li></ul>` +
	`<h3>Requirements</h3><ul><li>3+ years of experience with Maya or Blender</li><li>Strong portfolio of stylised work</li></ul>` +
	`<p>We are an equal opportunity employer.</p>`

func enhancedMarkdown() string {
	return "## Sobre a vaga\n\nEstúdio independente que cria jogos mobile aconchegantes para jogadores do mundo todo, com um time remoto na América Latina.\n\n" +
		"## Responsabilidades\n\n- Criar personagens e props 3D estilizados para jogos em operação\n- Trabalhar junto a animadores e artistas técnicos\n\n" +
		"## Requisitos\n\n- 3+ anos de experiência com Maya ou Blender\n- Portfólio forte de trabalhos estilizados"
}

func newTestEnhancer(clients ...llm.Completer) *Enhancer {
	providers := make([]llm.Provider, 0, len(clients))
	for i, c := range clients {
		providers = append(providers, llm.Provider{Name: fmt.Sprintf("p%d", i), Client: c})
	}
	chain := llm.NewChain(llm.ChainConfig{Timeout: time.Second}, providers, llm.WithSleep(func(context.Context, time.Duration) error { return nil }))
	return New(Config{}, chain, NewCache(10))
}

func TestEnhanceSkipsShortInput(t *testing.T) {
	client := &stubClient{reply: enhancedMarkdown()}
	e := newTestEnhancer(client)

	assert.Equal(t, "Remote 3D artist.", e.Enhance(context.Background(), "  Remote 3D artist.  ", "3D Artist", "Studio"))
	assert.Equal(t, "short bold", e.Enhance(context.Background(), "<b>short bold</b>", "3D Artist", "Studio"))
	assert.Zero(t, client.calls)
}

func TestEnhanceUsesProviderAndCaches(t *testing.T) {
	client := &stubClient{reply: "```markdown\n" + enhancedMarkdown() + "\n```"}
	e := newTestEnhancer(client)

	first := e.Enhance(context.Background(), rawPosting, "3D Artist", "Cozy Studio")
	second := e.Enhance(context.Background(), rawPosting, "3D Artist", "Cozy Studio")

	assert.Equal(t, enhancedMarkdown(), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.calls)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Cozy Studio")
	assert.Contains(t, client.prompts[0], "## Sobre a vaga")
	assert.Contains(t, client.prompts[0], "Maya or Blender")
	assert.NotContains(t, client.prompts[0], "<li>")
}

func TestEnhanceFallsBackThroughProviders(t *testing.T) {
	broken := &stubClient{err: errors.New("quota")}
	tooShort := &stubClient{reply: "## Sobre a vaga\n\nOk."}
	good := &stubClient{reply: enhancedMarkdown()}
	e := newTestEnhancer(broken, tooShort, good)

	out := e.Enhance(context.Background(), rawPosting, "3D Artist", "Cozy Studio")
	assert.Equal(t, enhancedMarkdown(), out)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, tooShort.calls)
	assert.Equal(t, 1, good.calls)
}

func TestEnhanceFallsBackToConverter(t *testing.T) {
	e := newTestEnhancer(&stubClient{err: errors.New("down")})

	out := e.Enhance(context.Background(), rawPosting, "3D Artist", "Cozy Studio")
	assert.Contains(t, out, "## About us")
	assert.Contains(t, out, "- Create stylised 3D characters and props for live games")
	assert.NotContains(t, out, "equal opportunity")
	assert.False(t, markdown.ContainsHTML(out))
}

func TestEnhanceWithoutRunnerConverts(t *testing.T) {
	e := New(Config{}, nil, nil)
	out := e.Enhance(context.Background(), rawPosting, "3D Artist", "Cozy Studio")
	assert.Contains(t, out, "### What you will do")
}

func TestEnhanceRejectsResultUnderMinimum(t *testing.T) {
	// passes provider validation (over 15% of the input) but stays under 200 characters
	reply := "## Sobre a vaga\n\nEstúdio de jogos mobile.\n\n## Requisitos\n\n- Maya ou Blender\n- Portfólio"
	e := newTestEnhancer(&stubClient{reply: reply})

	out := e.Enhance(context.Background(), rawPosting, "3D Artist", "Cozy Studio")
	assert.Contains(t, out, "## About us")
}

func TestEnhanceNeverReturnsHTML(t *testing.T) {
	htmlReply := "<h2>Sobre a vaga</h2><p>" + strings.Repeat("Texto descritivo da vaga. ", 20) + "</p><script>x()</script>"
	inputs := []string{
		rawPosting,
		"&amp;lt;div&amp;gt;" + strings.Repeat("double escaped content ", 10) + "&amp;lt;/div&amp;gt;",
		"<div><p>Unclosed <b>" + strings.Repeat("broken markup ", 10) + "<li>item",
		strings.Repeat("plain words here ", 5) + strings.Repeat("&amp;lt;", 7) + "b" + strings.Repeat("&amp;gt;b", 6) + "&amp;gt; done",
	}
	for _, in := range inputs {
		e := newTestEnhancer(&stubClient{reply: htmlReply})
		out := e.Enhance(context.Background(), in, "Artist", "Studio")
		assert.False(t, markdown.ContainsHTML(out), "output still has HTML: %q", out)

		converted := New(Config{}, nil, nil).Enhance(context.Background(), in, "Artist", "Studio")
		assert.False(t, markdown.ContainsHTML(converted), "converter output still has HTML: %q", converted)
	}
}

func TestEnhanceDoesNotCacheCancelledFallback(t *testing.T) {
	client := &ctxClient{reply: enhancedMarkdown()}
	e := newTestEnhancer(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fallback := e.Enhance(ctx, rawPosting, "3D Artist", "Cozy Studio")
	assert.Contains(t, fallback, "## About us")

	out := e.Enhance(context.Background(), rawPosting, "3D Artist", "Cozy Studio")
	assert.Equal(t, enhancedMarkdown(), out)
	assert.Equal(t, 2, client.calls)
}

func TestEnhanceIsIdempotent(t *testing.T) {
	client := &stubClient{reply: enhancedMarkdown() + "\n\n## Benefícios\n\n"}
	e := newTestEnhancer(client)

	once := e.Enhance(context.Background(), rawPosting, "3D Artist", "Cozy Studio")
	twice := e.Enhance(context.Background(), once, "3D Artist", "Cozy Studio")

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, client.calls)
	assert.NotContains(t, once, "Benefícios")
}

func TestCleanup(t *testing.T) {
	in := "```md\n## Sobre a vaga\n\nVeja [nosso site](https://studio.test) [company should add salary info].\n\n" +
		"## Requisitos\n\n- Blender\n- [inserir requisito]\n\n\n\nWe are an Equal Opportunity Employer.\n\n**Benefícios:**\n\n```"
	out := cleanup(in)

	assert.Equal(t, "## Sobre a vaga\n\nVeja [nosso site](https://studio.test) .\n\n## Requisitos\n\n- Blender", out)
	assert.Equal(t, out, cleanup(out))
}

func TestCacheEvictsOldest(t *testing.T) {
	c := NewCache(3)
	for i := 0; i < 4; i++ {
		c.Put(uint64(i), fmt.Sprint(i))
	}
	c.Put(3, "updated")

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get(0)
	assert.False(t, ok)
	v, ok := c.Get(3)
	assert.True(t, ok)
	assert.Equal(t, "updated", v)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("a", "body"), Fingerprint("a", "body"))
	assert.NotEqual(t, Fingerprint("a", "body"), Fingerprint("b", "body"))
	assert.NotEqual(t, Fingerprint("a", "body"), Fingerprint("a", "body!"))
}

func TestValidateLength(t *testing.T) {
	check := validateLength(1000)
	assert.Error(t, check(strings.Repeat("x", 100)))
	assert.NoError(t, check(strings.Repeat("x", 160)))
	assert.NoError(t, validateLength(100000)(strings.Repeat("x", 300)))
}

type stubClient struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (s *stubClient) Complete(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type ctxClient struct {
	reply string
	calls int
}

func (c *ctxClient) Complete(ctx context.Context, _ string) (string, error) {
	c.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.reply, nil
}
