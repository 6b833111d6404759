// Package plugin defines the plugin contract and the registry that holds
// registered plugins.
//
// A plugin is anything implementing the Plugin interface: a cheap, pure
// CanHandle predicate, an Execute method that may do real work and fail,
// and a one-line Help summary. Plugins are registered statically through
// Registry.Register or discovered from a directory of Lua definitions
// through Registry.Discover.
//
// The registry preserves registration order; that order is the routing
// priority. Disabling a plugin removes it from matching but keeps its
// slot, so re-enabling restores the original priority.
package plugin
