package fetcher

import (
	"strings"

	"ats-radar/internal/model"
	"ats-radar/internal/textmatch"
)

var (
	internshipWords = textmatch.NewSet("intern", "internship", "estágio", "estagio", "estagiário", "estagiária", "trainee")
	freelanceWords  = textmatch.NewSet("freelance", "freelancer", "freela", "contractor", "autônomo")
	cltWords        = textmatch.NewSet("CLT", "regime CLT")
	pjWords         = textmatch.NewSet("PJ", "pessoa jurídica", "pessoa juridica")
	b2bWords        = textmatch.NewSet("B2B contract", "contrato B2B", "B2B agreement", "B2B basis")
)

// DetectContract 按顺序检查关键词：实习优先级最高，其次是标题中的自由职业、
// 巴西常见的 CLT/PJ、B2B 合同，最后才参考来源自带的雇佣类型。
func DetectContract(title, description, hint string) model.ContractType {
	switch {
	case internshipWords.Any(title), internshipWords.Any(hint):
		return model.ContractInternship
	case freelanceWords.Any(title):
		return model.ContractFreelance
	case cltWords.Any(title), cltWords.Any(description):
		return model.ContractCLT
	case pjWords.Any(title), pjWords.Any(description):
		return model.ContractPJ
	case b2bWords.Any(title), b2bWords.Any(description):
		return model.ContractB2B
	}
	return contractFromHint(hint)
}

// contractFromHint 映射来源的雇佣类型，如 Ashby 的 FullTime、Lever 的 commitment。
func contractFromHint(hint string) model.ContractType {
	h := strings.ToLower(strings.NewReplacer("-", "", " ", "", "_", "").Replace(hint))
	switch {
	case h == "":
		return ""
	case strings.Contains(h, "intern"):
		return model.ContractInternship
	case strings.Contains(h, "fulltime"), strings.Contains(h, "permanent"):
		return model.ContractFullTime
	case strings.Contains(h, "parttime"):
		return model.ContractPartTime
	case strings.Contains(h, "contract"), strings.Contains(h, "freelance"):
		return model.ContractFreelance
	case strings.Contains(h, "temporary"), strings.Contains(h, "temp"):
		return model.ContractTemporary
	default:
		return ""
	}
}
