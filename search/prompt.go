package search

import "strings"

// ContextSeparator joins retrieved chunks in the prompt context.
const ContextSeparator = "\n\n---\n\n"

// PromptTemplate instructs the model to answer only from the retrieved
// context. {contexto} and {pergunta} are replaced by FormatPrompt.
const PromptTemplate = `CONTEXTO:
{contexto}

REGRAS:
- Responda somente com base no CONTEXTO.
- Se a informação não estiver explicitamente no CONTEXTO, responda:
  "Não tenho informações necessárias para responder sua pergunta."
- Nunca invente ou use conhecimento externo.
- Nunca produza opiniões ou interpretações além do que está escrito.

EXEMPLOS DE PERGUNTAS FORA DO CONTEXTO:
Pergunta: "Qual é a capital da França?"
Resposta: "Não tenho informações necessárias para responder sua pergunta."

Pergunta: "Quantos clientes temos em 2024?"
Resposta: "Não tenho informações necessárias para responder sua pergunta."

Pergunta: "Você acha isso bom ou ruim?"
Resposta: "Não tenho informações necessárias para responder sua pergunta."

PERGUNTA DO USUÁRIO:
{pergunta}

RESPONDA A "PERGUNTA DO USUÁRIO"`

// FormatPrompt fills PromptTemplate in a single pass, so placeholders that
// appear inside the context or question are left as they are.
func FormatPrompt(contexto, pergunta string) string {
	return strings.NewReplacer(
		"{contexto}", contexto,
		"{pergunta}", pergunta,
	).Replace(PromptTemplate)
}
