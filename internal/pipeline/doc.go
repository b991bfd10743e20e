// Package pipeline provides the query orchestrator.
//
// A query moves through a fixed sequence of states. Each state has exactly
// one successor and any state may fail:
//
//	Received -> Classified -> ContextFetched -> Optimized -> Serialized
//	         -> Generated -> Persisted -> Completed
//	(any) -> Failed
//
// # Stages
//
//   - Classified: the intent classifier produces an IntentResult.
//   - ContextFetched: the requested (or classified) domains are read through
//     the domain cache. A domain that cannot be fetched is simply absent.
//   - Optimized / Serialized: the optimizer bounds the data and the
//     serializer renders it. While the rendered context exceeds the token
//     budget the optimizer runs again with halved limits.
//   - Generated: the prompt is sent to the generator under a deadline.
//   - Persisted: the user turn and the assistant turn are appended to the
//     conversation store. Persistence is best-effort.
//
// # Failure
//
// On Failed the orchestrator answers with a fixed apology and a constant
// list of suggested queries, no sources and zero confidence. The cause is
// logged with the state it surfaced in and a metrics sample is recorded
// with success=false. Callers never see internal error text.
//
// No state is retried.
package pipeline
