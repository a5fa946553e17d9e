package config

import (
	"fmt"
	"regexp"
)

// Built-in registry names.
const (
	RegistryDefault = "default"
	RegistryLegacy  = "legacy"
)

// DefaultConfirmations are the tokens that accept a proposed next stage.
var DefaultConfirmations = []string{
	"sim", "s", "ok", "pode", "pode gerar", "gerar", "gere", "gera",
	"continuar", "continue", "prosseguir", "avançar", "avancar", "yes",
}

// wordPattern compiles alternatives where bare words of the form `w:xyz`
// must be delimited by non-letters. Go's \b is ASCII-only, so "tr" would
// otherwise match inside "trânsito".
func wordPattern(alternatives ...string) *regexp.Regexp {
	const boundaryL = `(?:^|[^\p{L}\p{N}_])`
	const boundaryR = `(?:$|[^\p{L}\p{N}_])`
	expr := ""
	for i, alt := range alternatives {
		if i > 0 {
			expr += "|"
		}
		if len(alt) > 2 && alt[:2] == "w:" {
			expr += boundaryL + alt[2:] + boundaryR
		} else {
			expr += alt
		}
	}
	return regexp.MustCompile(expr)
}

var pipelinePrompts = map[Stage]StageDefinition{
	StagePCA: {
		Key:   StagePCA,
		Title: "Plano de Contratações Anual",
		Prompt: "Você é o Agente PCA (Plano de Contratações Anual) do TJSP. " +
			"Objetivo: registrar a demanda no planejamento anual, com descrição sucinta do objeto, " +
			"quantidade estimada, valor estimado, unidade requisitante, prioridade e data desejada. " +
			"Saída: item de PCA estruturado.",
	},
	StageDFD: {
		Key:   StageDFD,
		Title: "Documento de Formalização da Demanda",
		Prompt: "Você é o Agente DFD (Documento de Formalização da Demanda) do TJSP. " +
			"Objetivo: estruturar escopo, motivação, aderência à necessidade, requisitos " +
			"mínimos e benefícios esperados. Saída: DFD em tópicos claros.",
	},
	StageETP: {
		Key:   StageETP,
		Title: "Estudo Técnico Preliminar",
		Prompt: "Você é o Agente ETP (Estudo Técnico Preliminar) do TJSP. " +
			"Objetivo: analisar alternativas, estimativa de preços, justificativas, " +
			"riscos, critérios objetivos e viabilidade. Saída: ETP resumido e estruturado.",
	},
	StageITF: {
		Key:   StageITF,
		Title: "Justificativa Técnica e Finalística",
		Prompt: "Você é o Agente ITF (Justificativa Técnica e Finalística / Instrumento de Planejamento). " +
			"Objetivo: consolidar justificativa técnica-finalística, resultados esperados, " +
			"indicadores e alinhamento estratégico. Saída: ITF claro e objetivo.",
	},
	StageTR: {
		Key:   StageTR,
		Title: "Termo de Referência",
		Prompt: "Você é o Agente TR (Termo de Referência) do TJSP. " +
			"Objetivo: redigir TR com objeto, justificativa, especificações, critérios " +
			"de medição, SLAs, prazo, obrigações e critérios de julgamento. Saída: TR em seções.",
	},
	StagePesquisa: {
		Key:   StagePesquisa,
		Title: "Pesquisa de Preços",
		Prompt: "Você é o Agente de Pesquisa de Preços. " +
			"Objetivo: orientar fontes, metodologia (painel, contratações similares, mercado), " +
			"tratamento de outliers e consolidação. Saída: guia resumido + quadro sintético.",
	},
	StageMatriz: {
		Key:   StageMatriz,
		Title: "Matriz de Riscos",
		Prompt: "Você é o Agente Matriz de Riscos. " +
			"Objetivo: identificar riscos por fase, impacto e probabilidade, mitigações " +
			"e alocação (contratante/contratada). Saída: tabela simples + comentários.",
	},
	StageEdital: {
		Key:   StageEdital,
		Title: "Minutas e Editais",
		Prompt: "Você é o Agente Minutas/Editais. " +
			"Objetivo: compor/minutar edital com cláusulas padrão, critérios objetivos, " +
			"habilitação e penalidades. Saída: estrutura de edital em tópicos.",
	},
	StageContrato: {
		Key:   StageContrato,
		Title: "Contrato Administrativo",
		Prompt: "Você é o Agente Contrato Administrativo. " +
			"Objetivo: consolidar minuta contratual com objeto, vigência, reajuste, " +
			"garantias, fiscalização e sanções. Saída: minuta resumida estruturada.",
	},
	StageFiscalizacao: {
		Key:   StageFiscalizacao,
		Title: "Gestão e Fiscalização Contratual",
		Prompt: "Você é o Agente de Gestão e Fiscalização Contratual. " +
			"Objetivo: plano de fiscalização, indicadores, prazos de medição, " +
			"checklists e comunicação. Saída: plano de fiscalização enxuto.",
	},
	StageChecklist: {
		Key:   StageChecklist,
		Title: "Checklist Normativo",
		Prompt: "Você é o Agente Checklist Normativo. " +
			"Objetivo: checar conformidade mínima com boa prática e leis aplicáveis. " +
			"Saída: checklist de verificação simples (itens OK/NOK e observações).",
	},
}

func definitions(keys ...Stage) []StageDefinition {
	out := make([]StageDefinition, len(keys))
	for i, k := range keys {
		out[i] = pipelinePrompts[k]
	}
	return out
}

// DefaultRegistry returns the PCA → CHECKLIST pipeline.
func DefaultRegistry() *Registry {
	stages := definitions(StagePCA, StageDFD, StageETP, StageTR, StageContrato, StageFiscalizacao, StageChecklist)
	rules := []KeywordRule{
		{wordPattern(`w:pca`, `plano (anual )?de contrata[çc]`), StagePCA},
		{wordPattern(`w:dfd`, `formaliza[çc][aã]o da demanda`, `formaliza`), StageDFD},
		{wordPattern(`w:etp`, `estudo t[ée]cnico`), StageETP},
		{wordPattern(`w:tr`, `termo de refer[êe]ncia`), StageTR},
		// Before CONTRATO: "fiscalização do contrato" belongs here.
		{wordPattern(`fiscaliza[çc][aã]o`, `gest[aã]o contratual`, `w:fiscal do contrato`), StageFiscalizacao},
		{wordPattern(`w:contrato`, `minuta contratual`), StageContrato},
		{wordPattern(`checklist`, `conformidade`, `lista de verifica[çc][aã]o`), StageChecklist},
	}
	r, err := NewRegistry(RegistryDefault, stages, rules, DefaultConfirmations)
	if err != nil {
		panic(err)
	}
	return r
}

// LegacyRegistry returns the ten-agent pipeline with its wider synonym table.
func LegacyRegistry() *Registry {
	stages := definitions(StageDFD, StageETP, StageITF, StageTR, StagePesquisa, StageMatriz,
		StageEdital, StageContrato, StageFiscalizacao, StageChecklist)
	rules := []KeywordRule{
		{wordPattern(`w:dfd`, `formaliza`), StageDFD},
		{wordPattern(`w:etp`, `estudo t[ée]cnico`), StageETP},
		{wordPattern(`w:itf`, `justificativa t[ée]cnica`, `final[íi]stica`), StageITF},
		{wordPattern(`w:tr`, `termo de refer[êe]ncia`), StageTR},
		{wordPattern(`pesquisa de pre[çc]os`, `cota[çc][aã]o`), StagePesquisa},
		{wordPattern(`matriz de riscos`, `riscos\b`), StageMatriz},
		{wordPattern(`edital`, `minuta`), StageEdital},
		{wordPattern(`contrato\b`), StageContrato},
		{wordPattern(`fiscaliza[çc][aã]o`, `gest[aã]o contratual`), StageFiscalizacao},
		{wordPattern(`checklist`, `conformidade`), StageChecklist},
	}
	r, err := NewRegistry(RegistryLegacy, stages, rules, DefaultConfirmations)
	if err != nil {
		panic(err)
	}
	return r
}

// RegistryByName returns a built-in registry.
func RegistryByName(name string) (*Registry, error) {
	switch name {
	case "", RegistryDefault:
		return DefaultRegistry(), nil
	case RegistryLegacy:
		return LegacyRegistry(), nil
	default:
		return nil, fmt.Errorf("unknown pipeline '%s'", name)
	}
}
