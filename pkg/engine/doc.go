// Package engine implements the core orchestration logic for anreicher.
// The Engine struct implements transport.PipelineRunner: it resolves the
// request's engine and template, runs the template's enrichers over a
// fresh PromptContext, performs the final generation call, formats the
// output and hands the result to the template's post-generation actions.
package engine
