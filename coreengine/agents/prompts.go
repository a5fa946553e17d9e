package agents

import (
	"fmt"
	"strings"

	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/session"
)

// NoHistory stands in for an empty transcript tail.
const NoHistory = "Sem histórico relevante."

const agentInstructions = "Instruções ao agente: responda de forma objetiva, com seções e listas quando fizer sentido. " +
	"Se faltarem dados essenciais, pergunte de forma clara o que falta antes de concluir o artefato."

const acknowledgePrompt = "Você é o Agente Orquestrador do Synapse.IA. " +
	"Sua tarefa é reconhecer a intenção do usuário, dizer que entendeu de forma amigável " +
	"e indicar qual agente especializado irá responder. Seja acolhedor e natural, evite repetir o texto do usuário."

// directives is appended to every stage prompt.
func directives(references []string) string {
	var b strings.Builder
	b.WriteString("Diretrizes gerais:\n")
	b.WriteString("- Produza o artefato completo e estruturado, pronto para revisão.\n")
	b.WriteString("- Classifique cada insumo como ✅ (pronto), ⚠️ (parcial) ou ❌ (faltante).\n")
	if len(references) > 0 {
		fmt.Fprintf(&b, "- Fundamente-se em: %s.\n", strings.Join(references, "; "))
	}
	b.WriteString("- Responda APENAS com um objeto JSON, sem texto adicional e sem blocos de código, com as chaves: " +
		"insumos, resumo, artefato, proximos_passos, perguntas_faltantes.")
	return b.String()
}

// SystemPrompt is the stage prompt followed by the global directives.
func (i *Invoker) SystemPrompt(stage config.Stage) string {
	return i.prompts.Prompt(stage) + "\n\n" + directives(i.cfg.RegulatoryReferences)
}

// UserPrompt renders the stage, the last HistoryWindow transcript entries and the user input.
func (i *Invoker) UserPrompt(stage config.Stage, userText string, tail []session.Message) string {
	if n := i.cfg.HistoryWindow; len(tail) > n {
		tail = tail[len(tail)-n:]
	}
	lines := make([]string, 0, len(tail))
	for _, m := range tail {
		lines = append(lines, m.Role+": "+m.Content)
	}
	history := NoHistory
	if len(lines) > 0 {
		history = strings.Join(lines, "\n")
	}

	return fmt.Sprintf("Etapa: %s\nContexto recente:\n%s\n\n%s\n\nEntrada do usuário:\n%s",
		stage, history, agentInstructions, userText)
}

// DefaultAcknowledgement is used when the acknowledgement call is disabled or fails.
func DefaultAcknowledgement(stage config.Stage) string {
	return fmt.Sprintf("Entendido! Acionando o agente %s para te ajudar.", stage)
}
