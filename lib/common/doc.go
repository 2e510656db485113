// Package common holds what every command shares: the logger factory
// installed into dragonboat's logger package, and BootConfig, the parameters
// of the boot flow as read from flags and the environment.
package common
