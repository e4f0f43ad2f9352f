// Package settings is the path settings controller. It owns the scenery and
// aircraft path lists, persisting them on every change, and mediates
// download directory, data directory, catalog and install intents onto the
// package root.
//
// Every accepted change emits an Event. Listeners receive events one at a
// time in the order the changes were accepted and re-query the controller
// for current state; events carry no payload.
package settings
