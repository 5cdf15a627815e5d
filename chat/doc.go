// Package chat runs the interactive question and answer loop.
//
// Each question is answered from scratch: the most similar document chunks
// are retrieved, placed in the prompt template and sent to the chat model
// once. Empty lines are ignored; "sair", "exit" or "quit" end the session,
// as do end of input and interrupts.
package chat
