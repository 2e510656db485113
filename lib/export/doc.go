// Package export renders decoded NVRAM records (DRAM timing, platform
// headers, store info, boot plans) as json or yaml for the command line.
//
// Serializers are stateless and created through New:
//
//	s, err := export.New("yaml")
//	out, err := s.Serialize(timing)
package export
