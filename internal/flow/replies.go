package flow

// Outbound reply texts. The channel audience is Brazilian Portuguese.
const (
	// GenericErrorReply is the single apology sent when message handling
	// fails for any internal reason.
	GenericErrorReply = "Ocorreu um erro ao processar sua solicitação. Por favor, tente novamente."

	welcomeBackTemplate = "Olá %s, bem-vindo(a) de volta ao FuelQ Pro! É bom ver você novamente. Digite 'planos' para ver seus planos anteriores ou 'visualizar' para criar um novo plano."

	pdfQuestion = "\n\nGostaria de receber este plano em formato PDF? (Sim/Não)"

	pdfLinkTemplate = "Aqui está o link para seu plano nutricional completo em PDF:\n\n%s\n\nEste link ficará disponível por 7 dias."

	// Sent when delivery fails while answering the yes/no PDF offer.
	pdfConfirmFailureReply = "Desculpe, ocorreu um erro ao gerar o PDF. Por favor, tente novamente mais tarde digitando 'pdf'."

	// Sent when delivery fails on an explicit 'pdf' command.
	pdfCommandFailureReply = "Desculpe, ocorreu um erro ao gerar o PDF. Por favor, tente novamente mais tarde."

	pdfDeclineReply = "Tudo bem! Se desejar o plano em PDF no futuro, digite 'pdf'."

	profileIncompleteReply = "Você ainda não completou seu perfil. Por favor, continue respondendo as perguntas."

	pdfNeedsProfileReply = "Você precisa completar seu perfil e gerar um plano básico primeiro. Digite 'reiniciar' para começar."

	noPlansReply = "Você ainda não tem planos salvos. Digite 'visualizar' para gerar seu primeiro plano."

	planListTemplate = "Seus planos nutricionais:\n\n%s\n\nDigite 'visualizar' para gerar um novo plano."

	resetReplyPrefix = "Perfil reiniciado. Vamos começar de novo!\n\n"

	summaryTemplate = "Obrigado! Aqui está o resumo do seu perfil:\n\n%s\n\nVerifique se os dados estão corretos e se estiver tudo certo, digite OK, para receber o seu plano, ou reiniciar para recomeçar o processo."

	menuReply = "Digite 'visualizar' para receber sua estratégia, 'pdf' para receber o plano em PDF, ou 'reiniciar' para começar novamente."
)
