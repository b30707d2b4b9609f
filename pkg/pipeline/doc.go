// Package pipeline implements the prompt-enrichment pipeline: the
// per-request PromptContext, the Enricher contract, the registries of
// enrichers and templates, the Builder that turns a template name into live
// enrichers, and the Executor that runs them in order.
//
// A run looks like this:
//
//	tmpl, err := builder.Resolve(req.Template, gw)   // no I/O
//	pc := pipeline.NewPromptContext(req)             // private copy of req
//	err = executor.Run(ctx, pc, tmpl)                // enrichers, in order
//	final := pc.FinalRequest()                       // ready for generation
//
// Enrichers communicate only through the PromptContext. Later enrichers
// read the keys earlier ones wrote (see keys.go), so the order configured in
// the template is significant and is preserved exactly.
package pipeline
