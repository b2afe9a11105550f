// Package module manages device bridge factories and their configured
// instances.
//
// Each module type registers a Factory. Configure rebuilds all instances of
// a type from configuration: existing instances are disposed (triggers
// removed, Close called) before replacements are constructed, under a write
// lock that dispatch cannot overlap. The Registry implements
// trigger.Resolver, so triggers reach their instance by ID at fire time.
package module
