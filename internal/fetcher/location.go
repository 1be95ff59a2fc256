package fetcher

import (
	"strings"

	"ats-radar/internal/model"
	"ats-radar/internal/textmatch"
)

var (
	hybridWords = textmatch.NewSet("hybrid", "híbrido", "hibrido", "híbrida")
	onsiteWords = textmatch.NewSet("on-site", "onsite", "on site", "in office", "in-office", "presencial")
	remoteWords = textmatch.NewSet("remote", "remoto", "remota", "anywhere", "work from home", "home office", "distributed")

	brazilWords = textmatch.NewSet("Brazil", "Brasil", "São Paulo", "Sao Paulo", "Rio de Janeiro", "Belo Horizonte",
		"Curitiba", "Porto Alegre", "Florianópolis", "Recife")
	latamWords = textmatch.NewSet("LATAM", "Latin America", "América Latina", "Latinoamérica", "South America",
		"Americas", "Argentina", "Mexico", "México", "Colombia", "Chile", "Peru", "Uruguay")
)

// ScopeFrom 根据工作模式字段与地点文本推断地点范围：
// hybrid → hybrid；明确 onsite → onsite；remote 且地点含巴西 → remote-brazil，
// 含拉美 → remote-latam，其余 remote → remote-worldwide；否则有地点即为 onsite。
// 既没有工作模式也没有地点时按 onsite 处理，不把未知职位标成远程。
func ScopeFrom(workModel, location string) model.LocationScope {
	wm := strings.TrimSpace(workModel)
	loc := strings.TrimSpace(location)

	switch {
	case hybridWords.Any(wm), wm == "" && hybridWords.Any(loc):
		return model.ScopeHybrid
	case onsiteWords.Any(wm):
		return model.ScopeOnsite
	case remoteWords.Any(wm), remoteWords.Any(loc):
		return remoteScope(loc)
	default:
		return model.ScopeOnsite
	}
}

func remoteScope(location string) model.LocationScope {
	switch {
	case brazilWords.Any(location):
		return model.ScopeRemoteBrazil
	case latamWords.Any(location):
		return model.ScopeRemoteLatam
	default:
		return model.ScopeRemoteWorldwide
	}
}
